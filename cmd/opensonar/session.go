package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"opensonar/internal/acquire"
	"opensonar/internal/config"
	"opensonar/internal/device"
	"opensonar/internal/gps"
	"opensonar/internal/indicator"
	"opensonar/internal/sim"
	"opensonar/internal/sonar"
	"opensonar/internal/surveylog"
	"opensonar/internal/svp"
	"opensonar/internal/udp"
)

type devices struct {
	gnss  device.PositionSource
	sonar device.DepthSource
	svp   device.SoundSpeedSource
}

func buildDevices(cfg config.Config, md surveylog.Metadata) devices {
	if cfg.Sim.Enable {
		v := sim.Vessel{
			CenterLatDeg: cfg.Sim.CenterLatDeg,
			CenterLonDeg: cfg.Sim.CenterLonDeg,
			RadiusM:      cfg.Sim.RadiusM,
			Period:       cfg.Sim.Period,
			HeightM:      cfg.Sim.HeightM,
			GeoidSepM:    cfg.Sim.GeoidSepM,
		}
		return devices{
			gnss:  &sim.GNSS{Vessel: v},
			sonar: &sim.Sonar{DepthM: cfg.Sim.DepthM, TrueSoundSpeed: cfg.Sim.TrueSoundSpeed},
			svp:   &sim.Probe{SoundSpeed: cfg.Sim.SVPSoundSpeed},
		}
	}
	return devices{
		gnss: gps.NewSerialSource(gps.Config{
			Device:      pick(cfg.GNSS.Device, md.GNSSCom.Port),
			Baud:        pickInt(cfg.GNSS.Baud, md.GNSSCom.Baud),
			Timeout:     cfg.GNSS.Timeout,
			MaxAttempts: cfg.GNSS.MaxAttempts,
		}),
		sonar: sonar.New(sonar.Config{
			Device:    pick(cfg.Sonar.Device, md.SonarCom.Port),
			Baud:      pickInt(cfg.Sonar.Baud, md.SonarCom.Baud),
			Timeout:   cfg.Sonar.Timeout,
			MaxFrames: cfg.Sonar.MaxAttempts,
		}),
		svp: svp.New(svp.Config{
			Device:  pick(cfg.SVP.Device, md.SVPCom.Port),
			Baud:    pickInt(cfg.SVP.Baud, md.SVPCom.Baud),
			Timeout: cfg.SVP.Timeout,
		}),
	}
}

func pick(override, fallback string) string {
	if s := strings.TrimSpace(override); s != "" {
		return s
	}
	return strings.TrimSpace(fallback)
}

func pickInt(override, fallback int) int {
	if override > 0 {
		return override
	}
	return fallback
}

// connectAll connects every device. A device that fails stays in the loop and
// reports itself unavailable on each poll.
func connectAll(d devices) {
	for name, c := range map[string]interface{ Connect() error }{"gnss": d.gnss, "sonar": d.sonar, "svp": d.svp} {
		if err := c.Connect(); err != nil {
			log.Printf("%s connect failed: %v", name, err)
		}
	}
}

// sessionName builds the log file stem from the survey name and start time.
func sessionName(md surveylog.Metadata, start time.Time) string {
	name := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' {
			return r
		}
		return '_'
	}, strings.TrimSpace(md.Survey.Name))
	if name == "" {
		name = "survey"
	}
	return name + "_" + start.UTC().Format("20060102T150405Z")
}

func openLogs(dir, stem string, md surveylog.Metadata) (raw, simple *surveylog.Writer, err error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, err
	}
	raw, err = surveylog.Create(filepath.Join(dir, stem+"_raw"+surveylog.Ext), surveylog.KindRaw, md)
	if err != nil {
		return nil, nil, err
	}
	simple, err = surveylog.Create(filepath.Join(dir, stem+"_simple"+surveylog.Ext), surveylog.KindSimple, md)
	if err != nil {
		_ = raw.Close()
		return nil, nil, err
	}
	return raw, simple, nil
}

// runSession acquires until ctx is done.
func runSession(ctx context.Context, cfg config.Config) error {
	md, err := surveylog.LoadMetadata(cfg.Metadata)
	if err != nil {
		return fmt.Errorf("metadata: %w", err)
	}
	if err := md.Validate(); err != nil {
		return err
	}

	stem := sessionName(md, time.Now())
	raw, simple, err := openLogs(cfg.OutputDir, stem, md)
	if err != nil {
		return err
	}
	log.Printf("session logs dir=%s stem=%s", cfg.OutputDir, stem)

	var led *indicator.LED
	if cfg.Indicator.Enable {
		led, err = indicator.New(indicator.Config{GPIO: cfg.Indicator.GPIO, Pulse: cfg.Indicator.Pulse})
		if err != nil {
			// Keep surveying without the LED.
			log.Printf("indicator init failed: %v", err)
		}
	}

	var fwd *udp.Forwarder
	if cfg.Forward.Enable {
		fwd, err = udp.NewForwarder(cfg.Forward.Dest)
		if err != nil {
			log.Printf("forward init failed: %v", err)
		} else {
			log.Printf("forward dest=%s", fwd.Dest())
		}
	}

	d := buildDevices(cfg, md)
	connectAll(d)

	acfg := acquire.Config{
		Recalibrate: cfg.Recalibrate.Enable,
		Period:      cfg.Recalibrate.Period,
		OnFix:       fixHooks(led, fwd),
	}
	if led != nil {
		defer led.Close()
	}
	if fwd != nil {
		defer fwd.Close()
	}
	loop, err := acquire.New(acfg, md, d.gnss, d.sonar, d.svp, raw, simple)
	if err != nil {
		_ = raw.Close()
		_ = simple.Close()
		return err
	}

	runErr := loop.Run(ctx, cfg.Interval)
	if err := loop.Close(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// fixHooks fans a logged fix out to the optional LED and UDP forwarder.
func fixHooks(led *indicator.LED, fwd *udp.Forwarder) func(surveylog.Fix) {
	if led == nil && fwd == nil {
		return nil
	}
	var sendErrs int
	return func(f surveylog.Fix) {
		if led != nil {
			led.Pulse()
		}
		if fwd != nil {
			if err := fwd.SendFix(f); err != nil {
				sendErrs++
				// Log the first failure and then every hundredth.
				if sendErrs%100 == 1 {
					log.Printf("forward send failed dest=%s count=%d: %v", fwd.Dest(), sendErrs, err)
				}
			}
		}
	}
}
