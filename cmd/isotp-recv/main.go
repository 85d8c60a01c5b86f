// Command isotp-recv waits for one ISO-TP transfer from the peer and
// prints it as hex, mirroring isotp-send's driver wiring.
package main

import (
	"encoding/hex"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"github.com/canbus-go/isotp"
	"github.com/canbus-go/isotp/pkg/candrv"
	"github.com/canbus-go/isotp/pkg/candrv/canfd"
	"github.com/canbus-go/isotp/pkg/candrv/virtual"
	"github.com/canbus-go/isotp/pkg/isotpconf"
	"github.com/canbus-go/isotp/pkg/metrics"
)

func main() {
	var (
		iface      = flag.StringP("iface", "i", "", "SocketCAN interface name, e.g. can0")
		broker     = flag.StringP("broker", "b", "", "virtual-bus broker address, e.g. localhost:18000")
		format     = flag.String("format", "classic", "classic or fd")
		txID       = flag.Uint32("tx-id", 0x7E8, "transmit arbitration ID (our Flow Control replies)")
		rxID       = flag.Uint32("rx-id", 0x7E0, "receive arbitration ID")
		mode       = flag.String("addressing", "normal", "normal, normal-fixed, extended, mixed")
		configPath = flag.StringP("config", "c", "", "optional isotpconf INI file; its format and addressing override --format and --addressing")
		blockSize  = flag.Uint8("bs", 8, "Flow Control block size we advertise")
		stMinUs    = flag.Uint32("stmin-us", 0, "Flow Control STmin we advertise, in microseconds")
		timeoutUs  = flag.Int64("timeout-us", 5_000_000, "per-call I/O timeout in microseconds")
		verbose    = flag.BoolP("verbose", "v", false, "enable debug logging")
	)
	flag.Parse()

	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	canFormat := isotp.Classic
	addrMode := isotp.Normal
	var fcWaitMax uint32
	var timeouts isotp.Timeouts

	if *configPath != "" {
		cfg, err := isotpconf.Load(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "isotp-recv: load config:", err)
			os.Exit(1)
		}
		canFormat, addrMode, fcWaitMax, timeouts = cfg.Format, cfg.Mode, cfg.FCWaitMax, cfg.Timeouts
	} else {
		if *format == "fd" {
			canFormat = isotp.FD
		}
		addrMode = parseMode(*mode)
	}

	drv, err := openDriver(canFormat, *iface, *broker, *txID, *rxID)
	if err != nil {
		fmt.Fprintln(os.Stderr, "isotp-recv:", err)
		os.Exit(1)
	}
	defer drv.Close()

	rec := metrics.NewRecorder("isotp-recv")
	ctx, err := isotp.NewContext(canFormat, addrMode, fcWaitMax, &timeouts, drv.Context(), drv.Recv(), drv.Send(), isotp.WithMetrics(rec))
	if err != nil {
		fmt.Fprintln(os.Stderr, "isotp-recv: new context:", err)
		os.Exit(1)
	}

	buf := make([]byte, 1<<20)
	n, err := ctx.Recv(buf, *blockSize, *stMinUs, *timeoutUs)
	if err != nil {
		log.WithError(err).Error("recv failed")
		os.Exit(1)
	}
	fmt.Println(hex.EncodeToString(buf[:n]))
}

func parseMode(s string) isotp.AddressingMode {
	switch s {
	case "normal-fixed":
		return isotp.NormalFixed
	case "extended":
		return isotp.Extended
	case "mixed":
		return isotp.Mixed
	default:
		return isotp.Normal
	}
}

func openDriver(format isotp.CANFormat, iface, broker string, txID, rxID uint32) (candrv.Driver, error) {
	switch {
	case broker != "":
		return virtual.Dial(broker, txID, rxID)

	case format == isotp.FD:
		return canfd.Open(iface, txID, rxID)

	default:
		return candrv.Open(iface, txID, rxID)
	}
}
