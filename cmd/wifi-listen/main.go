// wifi-listen joins a network, opens a server connection and prints
// whatever bytes arrive over it until the period expires.
//
// This provides an example of using the receive sink and of a second
// goroutine polling link status concurrently with the main receive loop,
// mirroring the modem's own single-client-task/single-command invariant
// being respected from two independent callers.
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
)

func main() {
	dev := flag.String("d", "", "path to modem device (default is platform-specific)")
	baud := flag.Int("b", 115200, "baud rate")
	ssid := flag.String("ssid", "", "access point SSID")
	pwd := flag.String("pwd", "", "access point password")
	host := flag.String("host", "", "server host or IP")
	port := flag.String("server-port", "80", "server TCP port")
	period := flag.Duration("p", 10*time.Minute, "period to listen")
	timeout := flag.Duration("t", 5*time.Second, "command timeout period")
	verbose := flag.Bool("v", false, "log modem interactions")
	flag.Parse()

	if *ssid == "" || *host == "" {
		fmt.Fprintln(os.Stderr, "usage: wifi-listen -ssid <ssid> -pwd <pwd> -host <host> [-server-port <port>]")
		os.Exit(2)
	}

	var sopts []serial.Option
	if *dev != "" {
		sopts = append(sopts, serial.WithPort(*dev))
	}
	sopts = append(sopts, serial.WithBaud(*baud))
	com, err := serial.New(sopts...)
	if err != nil {
		log.Fatal(err)
	}
	defer com.Close()

	var mio io.ReadWriter = com
	if *verbose {
		mio = trace.New(com)
	}

	d := modem.New(mio, modem.WithLogger(log.New(os.Stderr, "wifi-listen: ", log.LstdFlags)))

	ctx := context.Background()
	if err := d.Init(ctx); err != nil {
		log.Fatal(err)
	}
	defer d.Deinit()

	cctx, cancel := context.WithTimeout(ctx, *timeout)
	err = d.NetworkConnect(cctx, *ssid, *pwd)
	cancel()
	if err != nil {
		log.Fatal("network connect: ", err)
	}

	cctx, cancel = context.WithTimeout(ctx, *timeout)
	err = d.ServerConnect(cctx, *host, *port)
	cancel()
	if err != nil {
		log.Fatal("server connect: ", err)
	}

	d.SetReceiveSink(func(b byte) {
		os.Stdout.Write([]byte{b})
	})

	runCtx, runCancel := context.WithTimeout(ctx, *period)
	defer runCancel()
	go pollLinkStatus(runCtx, d)
	<-runCtx.Done()
	log.Println("exiting...")
}

// pollLinkStatus polls the driver's link status every minute.
//
// This is run in parallel to the receive sink to demonstrate separate
// goroutines observing the driver concurrently with no command in flight.
func pollLinkStatus(ctx context.Context, d *modem.Driver) {
	for {
		select {
		case <-time.After(time.Minute):
			status := d.Status()
			log.Printf("link status: associated=%v hasIP=%v tcpOpen=%v\n",
				status.WifiAssociated, status.WifiHasIP, status.TCPOpen)
		case <-ctx.Done():
			return
		}
	}
}
