package main

import "github.com/ValentinKolb/mcbs/cmd"

func main() {
	cmd.Execute()
}
