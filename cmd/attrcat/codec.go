package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/infodancer/mtawire/internal/attr"
	"github.com/infodancer/mtawire/internal/logging"
)

// stdio joins stdin and stdout into the duplex stream attr.Stream wants.
type stdio struct {
	io.Reader
	io.Writer
}

func runDecode() {
	limit := flag.Int("limit", attr.DefaultLineLimit, "line length limit")
	logLevel := flag.String("log-level", "warn", "log level (debug, info, warn, error)")
	flag.Parse()

	logger := logging.NewLogger(*logLevel)
	stream := attr.NewStream(stdio{os.Stdin, os.Stdout}, attr.StreamConfig{
		Name:      "stdin",
		LineLimit: *limit,
		Logger:    logger,
	})

	out := bufio.NewWriter(os.Stdout)
	defer func() { _ = out.Flush() }()

	for {
		recovered := make(map[string]string)
		n, err := attr.Scan(stream, attr.None, attr.WantMapping(recovered))
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return
			}
			fmt.Fprintf(os.Stderr, "attrcat: decode: %v\n", err)
			os.Exit(1)
		}

		names := make([]string, 0, n)
		for name := range recovered {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(out, "%s=%s\n", name, recovered[name])
		}
		fmt.Fprintln(out)
		_ = out.Flush()
	}
}

func runEncode() {
	limit := flag.Int("limit", attr.DefaultLineLimit, "line length limit")
	logLevel := flag.String("log-level", "warn", "log level (debug, info, warn, error)")
	flag.Parse()

	logger := logging.NewLogger(*logLevel)
	stream := attr.NewStream(stdio{os.Stdin, os.Stdout}, attr.StreamConfig{
		Name:      "stdout",
		LineLimit: *limit,
		Logger:    logger,
	})

	var attrs []attr.Attribute
	in := bufio.NewScanner(os.Stdin)
	for in.Scan() {
		line := in.Text()
		if line == "" {
			continue
		}
		name, value, ok := strings.Cut(line, "=")
		if !ok {
			fmt.Fprintf(os.Stderr, "attrcat: encode: %q is not name=value\n", line)
			os.Exit(1)
		}
		attrs = append(attrs, attr.String(name, value))
	}
	if err := in.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "attrcat: encode: reading stdin: %v\n", err)
		os.Exit(1)
	}

	if err := attr.Print(stream, attrs...); err != nil {
		fmt.Fprintf(os.Stderr, "attrcat: encode: %v\n", err)
		os.Exit(1)
	}
}
