package main

import "github.com/ValentinKolb/fieldlog/cmd"

func main() {
	cmd.Execute()
}
