// wifi-send joins a network and sends a single message to a TCP server.
//
// This provides an example of using NetworkConnect, ServerConnect and
// Transmit, as well as a test that the driver works against a modem.
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
	msg := flag.String("m", "hello", "message to send")
	timeout := flag.Duration("t", 5*time.Second, "command timeout period")
	verbose := flag.Bool("v", false, "log modem interactions")
	flag.Parse()

	if *ssid == "" || *host == "" {
		fmt.Fprintln(os.Stderr, "usage: wifi-send -ssid <ssid> -pwd <pwd> -host <host> [-server-port <port>] [-m <message>]")
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
		mio = trace.New(com, trace.WithLogger(log.New(os.Stdout, "", log.LstdFlags)))
	}

	d := modem.New(mio, modem.WithLogger(log.New(os.Stderr, "wifi-send: ", log.LstdFlags)))

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

	cctx, cancel = context.WithTimeout(ctx, *timeout)
	err = d.Transmit(cctx, []byte(*msg))
	cancel()
	if err != nil {
		log.Fatal("transmit: ", err)
	}

	cctx, cancel = context.WithTimeout(ctx, *timeout)
	if err := d.ServerDisconnect(cctx); err != nil {
		log.Println("server disconnect: ", err)
	}
	cancel()
}
