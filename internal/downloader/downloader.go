package downloader

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adshao/go-binance/v2"
	"go.uber.org/zap"
)

// requestPause spaces out kline requests to stay well under API limits.
const requestPause = 200 * time.Millisecond

// KlineDownloader fetches 1m klines from Binance and writes a close-price
// CSV usable as an offline feed.
type KlineDownloader struct {
	client *binance.Client
	logger *zap.SugaredLogger
}

// New creates a downloader. Klines are public data, no credentials needed.
func New(logger *zap.SugaredLogger) *KlineDownloader {
	return &KlineDownloader{
		client: binance.NewClient("", ""),
		logger: logger,
	}
}

// DownloadCloses downloads close prices for symbol between startTime and
// endTime into a two-column CSV (price header, one close per row). An
// existing file is treated as a cache and left untouched.
func (d *KlineDownloader) DownloadCloses(ctx context.Context, symbol, filePath string, startTime, endTime time.Time) error {
	if _, err := os.Stat(filePath); err == nil {
		d.logger.Infow("using cached price data", "path", filePath)
		return nil
	}

	d.logger.Infow("downloading klines",
		"symbol", symbol,
		"from", startTime.Format("2006-01-02"),
		"to", endTime.Format("2006-01-02"),
	)

	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("create %s: %w", filePath, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"price"}); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for t := startTime; t.Before(endTime); {
		klines, err := d.client.NewKlinesService().
			Symbol(symbol).
			Interval("1m").
			StartTime(t.UnixMilli()).
			EndTime(endTime.UnixMilli()).
			Limit(1000).
			Do(ctx)
		if err != nil {
			return fmt.Errorf("fetch klines: %w", err)
		}
		if len(klines) == 0 {
			break
		}

		for _, k := range klines {
			if err := writer.Write([]string{k.Close}); err != nil {
				return fmt.Errorf("write csv record: %w", err)
			}
		}

		t = time.UnixMilli(klines[len(klines)-1].CloseTime + 1)
		d.logger.Debugw("downloaded window", "until", t.Format("2006-01-02 15:04:05"))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(requestPause):
		}
	}

	d.logger.Infow("kline download complete", "path", filePath)
	return nil
}
