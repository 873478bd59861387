package main

import (
	"flag"
	"fmt"
	"math"
	"net/http"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/chengxinlun/skycore"
	"github.com/chengxinlun/skycore/satellite"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/soniakeys/meeus/v3/julian"
)

// skyview loads the catalogue, computes the positions at one date and prints what the observer sees.

const (
	dateFormat = "2006-01-02 15:04:05"
	r2d        = 180 / math.Pi
)

var (
	confPath    string
	date        string
	latitude    float64
	longitude   float64
	altitude    float64
	planet      string
	tleFile     string
	metricsAddr string
	watch       time.Duration
	exportPath  string
	exportFmt   string
	exportDays  float64
	exportStep  float64
	bodies      string
)

func init() {
	flag.StringVar(&confPath, "config", "", "configuration TOML file (defaults to $SKYCORE_CONFIG/conf.toml)")
	flag.StringVar(&date, "date", "", "UTC date as "+dateFormat+" or Julian day (defaults to now)")
	flag.Float64Var(&latitude, "lat", 0, "observer latitude in degrees")
	flag.Float64Var(&longitude, "lon", 0, "observer longitude in degrees, east positive")
	flag.Float64Var(&altitude, "alt", 0, "observer altitude in meters")
	flag.StringVar(&planet, "planet", "Earth", "body the observer stands on")
	flag.StringVar(&tleFile, "tle", "", "three line element set file")
	flag.StringVar(&metricsAddr, "metrics", ":9150", "address serving /metrics when metrics are enabled")
	flag.DurationVar(&watch, "watch", 0, "recompute at this interval instead of exiting")
	flag.StringVar(&exportPath, "export", "", "write an ephemeris to this file instead of printing the sky")
	flag.StringVar(&exportFmt, "format", "csv", "ephemeris format: csv or xyz")
	flag.Float64Var(&exportDays, "days", 1, "ephemeris duration in days")
	flag.Float64Var(&exportStep, "step", 1.0/24, "ephemeris step in days")
	flag.StringVar(&bodies, "bodies", "", "comma separated bodies to export (defaults to all)")
}

func main() {
	flag.Parse()
	cfg, err := skycore.LoadConfig(confPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
	logger := log.With(skycore.NewLogger(os.Stderr, cfg.LogLevel), "subsys", "cli")

	opts, err := cfg.Options()
	if err != nil {
		level.Error(logger).Log("msg", "could not load the ephemeris", "err", err)
		os.Exit(1)
	}
	opts = append(opts, skycore.WithLogger(skycore.NewLogger(os.Stderr, cfg.LogLevel)))
	var metrics *skycore.Metrics
	if cfg.Metrics {
		reg := prometheus.NewRegistry()
		if metrics, err = skycore.NewMetrics(reg); err != nil {
			level.Error(logger).Log("msg", "could not register metrics", "err", err)
			os.Exit(1)
		}
		opts = append(opts, skycore.WithMetrics(metrics))
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			level.Info(logger).Log("msg", "serving metrics", "addr", metricsAddr)
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				level.Error(logger).Log("msg", "metrics server stopped", "err", err)
			}
		}()
	}

	sys := skycore.NewSystem(opts...)
	report, err := sys.Load(cfg.Layers())
	if err != nil {
		level.Error(logger).Log("msg", "could not load the catalogue", "err", err)
		os.Exit(1)
	}
	level.Info(logger).Log("msg", "catalogue loaded", "bodies", report.Bodies, "applied", len(report.Applied), "failed", len(report.Failed), "skipped", len(report.Skipped))

	tracker, err := loadTracker(cfg, logger, metrics)
	if err != nil {
		level.Error(logger).Log("msg", "could not load the element sets", "err", err)
		os.Exit(1)
	}

	obs := skycore.Observer{Latitude: latitude, Longitude: longitude, Altitude: altitude, Planet: planet}
	if exportPath != "" {
		if err = exportEphemeris(sys, obs); err != nil {
			level.Error(logger).Log("msg", "export failed", "file", exportPath, "err", err)
			os.Exit(1)
		}
		level.Info(logger).Log("msg", "ephemeris written", "file", exportPath)
		return
	}
	for {
		jd, err := readJD(date)
		if err != nil {
			level.Error(logger).Log("msg", "could not understand the date", "date", date, "err", err)
			os.Exit(1)
		}
		if err = render(sys, tracker, obs, jd); err != nil {
			level.Error(logger).Log("msg", "update failed", "err", err)
			os.Exit(1)
		}
		if watch <= 0 {
			return
		}
		time.Sleep(watch)
	}
}

func loadTracker(cfg skycore.Config, logger log.Logger, metrics *skycore.Metrics) (*satellite.Tracker, error) {
	gravity, err := satellite.ParseGravity(cfg.SatelliteGravity)
	if err != nil {
		return nil, err
	}
	tracker := satellite.NewTracker(logger, metrics, satellite.WithGravity(gravity))
	if tleFile == "" {
		return tracker, nil
	}
	f, err := os.Open(tleFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	_, err = tracker.Load(f)
	return tracker, err
}

func exportEphemeris(sys *skycore.System, obs skycore.Observer) error {
	format, err := skycore.ParseExportFormat(exportFmt)
	if err != nil {
		return err
	}
	start, err := readJD(date)
	if err != nil {
		return err
	}
	conf := skycore.ExportConfig{Start: start, End: start + exportDays, Step: exportStep, Observer: obs}
	if bodies != "" {
		conf.Bodies = strings.Split(bodies, ",")
	}
	f, err := os.Create(exportPath)
	if err != nil {
		return err
	}
	defer f.Close()
	states := make(chan skycore.EphemerisState, 64)
	errc := make(chan error, 1)
	go func() {
		errc <- sys.Ephemeris(conf, states)
	}()
	werr := skycore.StreamStates(f, format, states)
	if err = <-errc; err != nil {
		return err
	}
	return werr
}

// readJD reads a date either as a Julian day or as a UTC date. An empty date is now.
func readJD(s string) (float64, error) {
	if s == "" {
		return julian.TimeToJD(time.Now().UTC()), nil
	}
	if jd, err := strconv.ParseFloat(s, 64); err == nil {
		return jd, nil
	}
	dt, err := time.Parse(dateFormat, s)
	if err != nil {
		return 0, err
	}
	return julian.TimeToJD(dt), nil
}

func render(sys *skycore.System, tracker *satellite.Tracker, obs skycore.Observer, jd float64) error {
	res, err := sys.Tick(jd, obs)
	if err != nil {
		return err
	}
	fmt.Printf("%s  JD %.6f  %s\n\n", julian.JDToTime(jd).Format(dateFormat), jd, obs.LocationID())
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "body\tkind\tdistance (AU)\talt (deg)\taz (deg)\tphase")
	for _, id := range res.DrawOrder {
		b, _ := sys.Body(id)
		if !listed(b, obs) {
			continue
		}
		alt, az, err := sys.AltAz(id)
		if err != nil {
			return err
		}
		phase, err := sys.Phase(id, res.ObserverPos)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s\t%.6f\t%.3f\t%.3f\t%.3f\n", b.Name, b.Kind, b.Distance, alt*r2d, az*r2d, phase)
	}
	if err = w.Flush(); err != nil {
		return err
	}
	if tracker.Len() == 0 || !strings.EqualFold(obs.Planet, "Earth") {
		return nil
	}
	tracker.Update(jd)
	fmt.Println()
	w = tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "satellite\trange (km)\trate (km/s)\talt (deg)\taz (deg)\tvisibility")
	tracker.Each(func(sat *satellite.Satellite) bool {
		ρ, ρdot, err := sat.SlantRange(obs)
		if err != nil {
			return true
		}
		alt, az, _ := sat.AltAz(obs)
		vis, _ := sat.Visibility(obs, sys)
		fmt.Fprintf(w, "%s\t%.1f\t%.3f\t%.2f\t%.2f\t%s\n", sat.Designation, ρ, ρdot, alt, az, vis)
		return true
	})
	return w.Flush()
}

// listed returns whether a body appears in the table: the planet the observer stands on is never listed.
func listed(b skycore.Body, obs skycore.Observer) bool {
	return !b.Hidden && !strings.EqualFold(b.Name, obs.Planet)
}
