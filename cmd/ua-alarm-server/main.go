package main

import "github.com/oshokin/opcua-alarms/cmd/ua-alarm-server/cmd"

func main() {
	cmd.Execute()
}
