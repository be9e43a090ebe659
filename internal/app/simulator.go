package app

import (
	"github.com/skobkin/wedgego/internal/datawedge"
	"github.com/skobkin/wedgego/internal/intentlink"
)

// SimulatedVersion is the DataWedge version reported by the simulator.
const SimulatedVersion = "8.2.48"

// Simulator plays the device side of a Loopback link. Every command gets a
// SUCCESS result, version queries get SimulatedVersion, and Scan emits scan output.
type Simulator struct {
	link       *intentlink.Loopback
	scanAction string
}

func NewSimulator(link *intentlink.Loopback, scanAction string) *Simulator {
	sim := &Simulator{link: link, scanAction: scanAction}
	link.OnSend(sim.reply)

	return sim
}

// Scan delivers a barcode as the scanner would and reports how many receivers got it.
func (s *Simulator) Scan(barcode, labelType string) int {
	in := datawedge.NewIntent(s.scanAction)
	in.Category = datawedge.CategoryDefault
	in.Extras[datawedge.ExtraDataString] = barcode
	in.Extras[datawedge.ExtraSource] = "scanner"
	if labelType != "" {
		in.Extras[datawedge.ExtraLabelType] = "LABEL-TYPE-" + labelType
	}

	return s.link.Inject(in)
}

// Status delivers a SCANNER_STATUS notification.
func (s *Simulator) Status(status, profile string) int {
	in := datawedge.NewIntent(datawedge.ActionNotification)
	in.Extras[datawedge.ExtraNotification] = datawedge.Bundle{
		datawedge.ExtraNotificationType: datawedge.NotificationTypeScannerStatus,
		datawedge.ExtraStatus:           status,
		datawedge.ExtraProfileName:      profile,
	}

	return s.link.Inject(in)
}

func (s *Simulator) reply(cmd datawedge.Intent) {
	if cmd.Action != datawedge.ActionAPI {
		return
	}
	id, _ := cmd.StringExtra(datawedge.ExtraCommandIdentifier)

	if cmd.Extras.Has(datawedge.ExtraGetVersionInfo) {
		out := datawedge.NewIntent(datawedge.ActionResult)
		out.Extras[datawedge.ExtraCommandIdentifier] = id
		out.Extras[datawedge.ExtraResultVersionInfo] = datawedge.Bundle{
			datawedge.VersionInfoDataWedgeKey: SimulatedVersion,
		}
		s.link.Inject(out)
		return
	}

	if sendResult, _ := cmd.StringExtra(datawedge.ExtraSendResult); sendResult != "true" {
		return
	}
	out := datawedge.NewIntent(datawedge.ActionResult)
	out.Extras[datawedge.ExtraResult] = datawedge.ResultSuccess
	out.Extras[datawedge.ExtraCommandIdentifier] = id
	for _, key := range cmd.Keys() {
		if key != datawedge.ExtraSendResult && key != datawedge.ExtraCommandIdentifier {
			out.Extras[datawedge.ExtraCommand] = key
			break
		}
	}
	s.link.Inject(out)
}
