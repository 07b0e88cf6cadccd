// Package collectors polls host state into Prometheus metrics.
package collectors

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/smazurov/spearcam/internal/logging"
	"github.com/smazurov/spearcam/internal/metrics"
)

var errNoCMA = errors.New("no CMA fields in meminfo")

// CMACollector samples the kernel contiguous memory pool from /proc/meminfo.
// The camera and codec buffers on the board come out of that pool.
type CMACollector struct {
	logger   logging.Logger
	procPath string
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewCMACollector creates a new CMA collector.
func NewCMACollector() *CMACollector {
	return &CMACollector{
		logger:   logging.GetLogger("memalloc"),
		procPath: "/proc/meminfo",
		interval: 5 * time.Second,
	}
}

// Start begins collecting.
func (c *CMACollector) Start(ctx context.Context) error {
	c.ctx, c.cancel = context.WithCancel(ctx)
	go c.run()
	return nil
}

// Stop stops the collector.
func (c *CMACollector) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	return nil
}

func (c *CMACollector) run() {
	c.logger.Debug("Starting CMA metrics collection", "path", c.procPath, "interval", c.interval)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	if !c.collect() {
		return
	}

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.collect()
		}
	}
}

// collect reports false when the kernel has no CMA pool, which stops the
// collector.
func (c *CMACollector) collect() bool {
	file, err := os.Open(c.procPath)
	if err != nil {
		c.logger.Warn("Failed to open meminfo", "error", err)
		return false
	}
	defer file.Close()

	total, free, err := c.parseContent(file)
	if errors.Is(err, errNoCMA) {
		c.logger.Info("Kernel reports no CMA pool, collector idle")
		return false
	}
	if err != nil {
		c.logger.Warn("Failed to parse meminfo", "error", err)
		return true
	}

	metrics.SetCMA(total, free)
	return true
}

func (c *CMACollector) parseContent(r io.Reader) (total, free uint64, err error) {
	var haveTotal, haveFree bool
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		key, value, err := c.parseLine(scanner.Text())
		if err != nil {
			continue
		}
		switch key {
		case "CmaTotal":
			total, haveTotal = value, true
		case "CmaFree":
			free, haveFree = value, true
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, 0, err
	}
	if !haveTotal || !haveFree {
		return 0, 0, errNoCMA
	}
	return total, free, nil
}

// parseLine parses "Key:   1234 kB" into the key and a byte count.
func (c *CMACollector) parseLine(line string) (string, uint64, error) {
	key, rest, ok := strings.Cut(line, ":")
	if !ok {
		return "", 0, fmt.Errorf("missing separator")
	}

	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return "", 0, fmt.Errorf("missing value")
	}

	n, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return "", 0, err
	}
	if len(fields) > 1 && fields[1] == "kB" {
		n *= 1024
	}
	return strings.TrimSpace(key), n, nil
}
