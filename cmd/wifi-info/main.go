// wifi-info brings the modem up and dumps its version and link status.
//
// This serves as an example of how to drive the modem package, as well as
// providing information which may be useful for debugging.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/simplerobot/rlm3wifi/modem"
	"github.com/simplerobot/rlm3wifi/serial"
	"github.com/simplerobot/rlm3wifi/trace"
	"github.com/simplerobot/rlm3wifi/version"
)

var buildVersion = "undefined"

func main() {
	dev := flag.String("d", "", "path to modem device (default is platform-specific)")
	baud := flag.Int("b", 115200, "baud rate")
	timeout := flag.Duration("t", 2*time.Second, "Init command timeout period")
	verbose := flag.Bool("v", false, "log modem interactions")
	vsn := flag.Bool("version", false, "report version and exit")
	flag.Parse()
	if *vsn {
		fmt.Printf("%s %s\n", os.Args[0], buildVersion)
		os.Exit(0)
	}

	var opts []serial.Option
	if *dev != "" {
		opts = append(opts, serial.WithPort(*dev))
	}
	opts = append(opts, serial.WithBaud(*baud))
	port, err := serial.New(opts...)
	if err != nil {
		log.Fatal(err)
	}
	defer port.Close()

	var mio io.ReadWriter = port
	if *verbose {
		mio = trace.New(port, trace.WithLogger(log.New(os.Stderr, "", log.LstdFlags)))
	}

	timeouts := modem.DefaultTimeouts()
	timeouts.Ping = *timeout
	d := modem.New(mio, modem.WithTimeouts(timeouts), modem.WithLogger(log.New(os.Stderr, "wifi-info: ", log.LstdFlags)))

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	if err := d.Init(ctx); err != nil {
		log.Fatal(err)
	}

	atVsn, sdkVsn, err := d.GetVersion(ctx)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("AT version:  %s\n", version.String(atVsn))
	fmt.Printf("SDK version: %s\n", version.String(sdkVsn))

	status := d.Status()
	fmt.Printf("wifi associated: %v\n", status.WifiAssociated)
	fmt.Printf("wifi has IP:     %v\n", status.WifiHasIP)
	fmt.Printf("tcp open:        %v\n", status.TCPOpen)
}
