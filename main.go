package main

import "github.com/frahmantamala/document-request/cmd"

func main() {
	cmd.Execute()
}
