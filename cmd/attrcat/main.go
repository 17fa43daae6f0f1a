// attrcat encodes and decodes attribute lists on stdin/stdout, for manual
// interop testing against daemons speaking the protocol.
//
// "attrcat decode" reads attribute lists from stdin and prints one
// name=value pair per line, with an empty line between lists.
// "attrcat encode" reads name=value pairs from stdin, one per line, and
// writes them as a single attribute list.
package main

import (
	"fmt"
	"os"
	"strings"
)

func main() {
	var subcommand string
	if len(os.Args) > 1 && !strings.HasPrefix(os.Args[1], "-") {
		subcommand = os.Args[1]
		os.Args = append(os.Args[:1], os.Args[2:]...)
	}

	switch subcommand {
	case "decode":
		runDecode()
	case "encode":
		runEncode()
	default:
		fmt.Fprintf(os.Stderr, "usage: attrcat <decode|encode> [flags]\n")
		os.Exit(1)
	}
}
