package main

import "metricindex/cmd"

func main() {
	cmd.Execute()
}
