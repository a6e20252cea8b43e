package main

import (
	"bufio"
	"context"
	"io"
	"os"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"

	"github.com/xenking/arena-booking/internal/domain/discount"
)

const maxLineBytes = 1 << 20

// decodeRule parses one NDJSON export line. Rules are active unless the
// line says otherwise.
func decodeRule(line []byte) (discount.Rule, error) {
	rule := discount.Rule{Active: true}
	var f discount.Fields

	d := jx.DecodeBytes(line)
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "id":
			rule.ID, err = d.Str()
		case "venueId":
			rule.VenueID, err = d.Str()
		case "title":
			rule.Title, err = d.Str()
		case "description":
			rule.Description, err = d.Str()
		case "active":
			rule.Active, err = d.Bool()
		case "kind":
			f.Kind, err = d.Str()
		case "value":
			f.Value, err = decodeDecimal(d)
		case "buyQuantity":
			f.BuyQuantity, err = d.Int()
		case "getQuantity":
			f.GetQuantity, err = d.Int()
		case "validDays":
			err = d.Arr(func(d *jx.Decoder) error {
				day, err := d.Str()
				f.ValidDays = append(f.ValidDays, day)
				return err
			})
		case "validStartTime":
			f.ValidStartTime, err = d.Str()
		case "validEndTime":
			f.ValidEndTime, err = d.Str()
		case "createdAt":
			var s string
			if s, err = d.Str(); err == nil {
				rule.CreatedAt, err = time.Parse(time.RFC3339Nano, s)
			}
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, string(key))
		}
		return nil
	})
	if err != nil {
		return discount.Rule{}, err
	}
	if err := d.Skip(); !errors.Is(err, io.EOF) {
		return discount.Rule{}, errors.New("unexpected data after JSON object")
	}
	if rule.ID == "" || rule.VenueID == "" {
		return discount.Rule{}, errors.New("id and venueId are required")
	}
	rule.Terms = discount.TermsFrom(f)
	return rule, nil
}

func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(s)
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(string(n))
	case jx.Null:
		return decimal.Zero, d.Null()
	default:
		return decimal.Zero, errors.New("expected decimal")
	}
}

// streamGzFile opens a gzip-compressed file and calls fn for each non-empty
// line with its 1-based line number.
func streamGzFile(ctx context.Context, path string, fn func(n int, line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	n := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		n++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		if err := fn(n, scanner.Bytes()); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}
