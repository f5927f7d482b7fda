package main

import "github.com/oshokin/opcua-alarms/cmd/ua-alarm-client/cmd"

func main() {
	cmd.Execute()
}
