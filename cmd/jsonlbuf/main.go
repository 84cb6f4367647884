/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/ssargent/jsonlbuf/cmd/jsonlbuf/cmd"

func main() {
	cmd.Execute()
}
