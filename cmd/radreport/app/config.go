package app

import (
	"errors"
	"flag"
)

type Config struct {
	DBPath     string
	SessionID  int64
	OutputFile string
	List       bool
}

func NewConfigFromCLI() (*Config, error) {
	c := &Config{}

	flag.StringVar(&c.DBPath, "db", "", "Path to the database file")
	flag.BoolVar(&c.List, "list", false, "List recorded sessions and exit")
	flag.Int64Var(&c.SessionID, "s", 1, "Session ID")
	flag.StringVar(&c.OutputFile, "o", "", "Path to the CSV output file (optional; summary only when omitted)")
	flag.Parse()

	var err error
	if c.DBPath == "" {
		err = errors.New("db path is required")
	} else if !c.List && c.SessionID <= 0 {
		err = errors.New("session id is required")
	}

	if err != nil {
		flag.Usage()
		return nil, err
	}

	return c, nil
}
