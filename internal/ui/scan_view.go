package ui

import (
	"context"
	"errors"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/widget"

	"github.com/skobkin/wedgego/internal/scanner"
)

const (
	resultPrefix = "Scan result: "
	errorPrefix  = "Error: "

	scanOnceLabel      = "Scan Once"
	startScanningLabel = "Start Scanning"
	stopScanningLabel  = "Stop Scanning"
)

// scanView is the demo window body: a result line, an error line and one
// button per scan operation.
type scanView struct {
	scanner ScanController
	hooks   UIHooks
	ctx     context.Context

	result   *widget.Label
	errLabel *widget.Label
	buttons  []*widget.Button
	content  fyne.CanvasObject
}

func newScanView(ctx context.Context, sc ScanController, hooks UIHooks, status fyne.CanvasObject) *scanView {
	v := &scanView{
		scanner:  sc,
		hooks:    hooks,
		ctx:      ctx,
		result:   widget.NewLabel(resultPrefix),
		errLabel: widget.NewLabel(errorPrefix),
	}

	v.buttons = []*widget.Button{
		widget.NewButton(scanOnceLabel, v.scanOnce),
		widget.NewButton(startScanningLabel, v.startScanning),
		widget.NewButton(stopScanningLabel, v.stopScanning),
		widget.NewButton("TestScan Success", func() { v.testScan(true) }),
		widget.NewButton("TestScan Failure", func() { v.testScan(false) }),
		widget.NewButton("Clear", v.clear),
	}
	v.buttons[0].Importance = widget.HighImportance
	v.buttons[len(v.buttons)-1].Importance = widget.LowImportance

	rows := container.NewVBox(
		v.result,
		v.errLabel,
		widget.NewSeparator(),
		v.buttons[0],
		container.NewGridWithColumns(2, v.buttons[1], v.buttons[2]),
		container.NewGridWithColumns(2, v.buttons[3], v.buttons[4]),
		v.buttons[5],
	)
	body := container.NewCenter(container.NewGridWrap(fyne.NewSize(360, rows.MinSize().Height), rows))
	if status == nil {
		v.content = body
	} else {
		v.content = container.NewBorder(nil, container.NewHBox(layout.NewSpacer(), status), nil, nil, body)
	}

	return v
}

func (v *scanView) Content() fyne.CanvasObject {
	return v.content
}

func (v *scanView) scanOnce() {
	v.clear()
	v.await(v.scanner.ScanOnce())
}

func (v *scanView) startScanning() {
	v.clear()
	v.await(v.scanner.StartScanning())
}

func (v *scanView) stopScanning() {
	v.clear()
	v.scanner.StopScanning()
}

func (v *scanView) testScan(success bool) {
	v.clear()
	barcode, err := v.scanner.TestScan(success)
	if err != nil {
		v.setError(err)
		return
	}
	v.setBarcode(barcode)
}

func (v *scanView) clear() {
	v.result.SetText(resultPrefix)
	v.errLabel.SetText(errorPrefix)
}

func (v *scanView) setBarcode(barcode string) {
	v.result.SetText(resultPrefix + barcode)
	v.errLabel.SetText(errorPrefix)
}

func (v *scanView) setError(err error) {
	v.result.SetText(resultPrefix)
	v.errLabel.SetText(errorPrefix + err.Error())
}

// await settles the labels when req does. A request still pending when the
// view goes away is cancelled.
func (v *scanView) await(req *scanner.Request) {
	v.hooks.runAsync(func() {
		barcode, err := req.Wait(v.ctx)
		if v.ctx.Err() != nil && errors.Is(err, v.ctx.Err()) {
			req.Cancel()
			return
		}
		v.hooks.runOnUI(func() {
			if err != nil {
				v.setError(err)
				return
			}
			v.setBarcode(barcode)
		})
	})
}

// listen shows every BarcodeScanned event until stopped.
func (v *scanView) listen() func() {
	sub := v.scanner.Subscribe()
	v.hooks.runAsync(func() {
		for ev := range sub.Events() {
			barcode := ev.Barcode
			v.hooks.runOnUI(func() {
				v.setBarcode(barcode)
			})
		}
	})

	return sub.Close
}
