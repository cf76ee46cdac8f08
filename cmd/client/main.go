// The wallet client: a line-oriented console talking the wallet protocol.
// Each entered line is sent as one message and the single reply is printed.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"net"
	"os"

	"github.com/fatih/color"
)

const bufferSize = 2048

func main() {
	addr := flag.String("addr", "localhost:7777", "wallet server address")
	flag.Parse()

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not connect to %s: %v\n", *addr, err)
		os.Exit(1)
	}
	defer conn.Close()

	prompt := color.New(color.FgCyan)
	reply := color.New(color.FgGreen)

	fmt.Printf("Connected to %s. Type \"help\" for commands, \"disconnect\" to leave.\n", *addr)

	buf := make([]byte, bufferSize)
	scanner := bufio.NewScanner(os.Stdin)
	for {
		prompt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()
		if line == "" {
			continue
		}

		if _, err := conn.Write([]byte(line)); err != nil {
			fmt.Fprintf(os.Stderr, "connection lost: %v\n", err)
			return
		}
		n, err := conn.Read(buf)
		if err != nil {
			fmt.Fprintln(os.Stderr, "server closed the connection")
			return
		}
		reply.Println(string(buf[:n]))

		if line == "disconnect" {
			return
		}
	}
}
