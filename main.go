package main

import "github.com/namastexlabs/automagik-omni/cmd"

func main() {
	cmd.Execute()
}
