// Copyright 2025-2026 Datalode, Inc.
// This software is released under an MIT/X11 open source license.

// Package conveyord provides the Conveyor queue daemon.  It owns the
// durable work queue and publishes the REST interface workers and
// operator tooling talk to, plus Prometheus metrics describing queue
// depth.  This is purely a server-side daemon; it does not include
// application code or a worker implementation.
package main

import (
	"flag"
	"io/ioutil"

	"github.com/datalode/conveyor/backend"
	"github.com/datalode/conveyor/cache"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

// config holds the daemon's YAML-file settings.  Every field has a
// flag equivalent; a flag explicitly set on the command line wins.
type config struct {
	HTTP      string `yaml:"http"`
	Backend   string `yaml:"backend"`
	Namespace string `yaml:"namespace"`
}

func main() {
	httpBind := flag.String("http", ":5980",
		"[ip]:port for HTTP REST interface")
	storage := backend.Backend{Implementation: "memory"}
	flag.Var(&storage, "backend", "impl[:address] of the storage backend")
	namespace := flag.String("namespace", "",
		"table-name prefix for shared databases")
	configFile := flag.String("config", "", "configuration YAML file")
	logRequests := flag.Bool("log-requests", false, "log all requests")
	flag.Parse()

	if *configFile != "" {
		cfg, err := loadConfigYaml(*configFile)
		if err != nil {
			logrus.WithError(err).Fatal("could not load YAML configuration")
		}
		set := map[string]bool{}
		flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
		if cfg.HTTP != "" && !set["http"] {
			*httpBind = cfg.HTTP
		}
		if cfg.Backend != "" && !set["backend"] {
			if err = storage.Set(cfg.Backend); err != nil {
				logrus.WithError(err).Fatal("bad backend in configuration")
			}
		}
		if cfg.Namespace != "" && !set["namespace"] {
			*namespace = cfg.Namespace
		}
	}
	storage.Namespace = *namespace

	queue, err := storage.Open()
	if err != nil {
		logrus.WithError(err).Fatal("could not open queue backend")
	}
	queue = cache.New(queue)

	var reqLogger *logrus.Logger
	if *logRequests {
		stdlog := logrus.StandardLogger()
		reqLogger = &logrus.Logger{
			Out:       stdlog.Out,
			Formatter: stdlog.Formatter,
			Hooks:     stdlog.Hooks,
			Level:     logrus.DebugLevel,
		}
	}

	logrus.WithFields(logrus.Fields{
		"backend": storage.String(),
		"http":    *httpBind,
	}).Info("conveyord starting")

	go observe(queue)
	h := &HTTP{queue: queue, laddr: *httpBind, logger: reqLogger}
	h.Serve()
}

func loadConfigYaml(filename string) (config, error) {
	var result config
	bytes, err := ioutil.ReadFile(filename)
	if err == nil {
		err = yaml.Unmarshal(bytes, &result)
	}
	return result, err
}
