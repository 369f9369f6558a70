// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Forecourt Systems

package bus

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/forecourt/dartline/internal/registry"
	"github.com/forecourt/dartline/pkg/mkr5"
)

// Scan walks the full address space 0x50-0x6F in ascending order, one
// bounded poll-then-status sequence per address with fixed inter-address
// spacing for bus settling. A scan always completes: unresponsive
// addresses end up in the registry marked offline rather than aborting
// the walk. Only cancellation or a channel-level failure stops it early,
// and even then the partial snapshot is returned.
func (s *Session) Scan(ctx context.Context) ([]registry.PumpRecord, error) {
	for addr := uint8(mkr5.AddressMin); ; addr++ {
		if err := ctx.Err(); err != nil {
			return s.reg.Snapshot(), err
		}

		frame, err := s.Poll(ctx, addr)
		switch {
		case err == nil:
			if frame.Kind == mkr5.FrameData {
				// Some pumps answer the poll with their status directly.
				if res, derr := s.dec.Decode(frame); derr == nil {
					s.reg.MarkOnline(addr, res)
					break
				}
			}
			if _, err := s.Status(ctx, addr); err != nil && isFatal(err) {
				return s.reg.Snapshot(), err
			}
		case isFatal(err):
			return s.reg.Snapshot(), err
		default:
			// Offline; already recorded by the retry loop.
		}

		if addr == mkr5.AddressMax {
			break
		}
		if err := sleepCtx(ctx, s.cfg.PollSpacing); err != nil {
			return s.reg.Snapshot(), err
		}
	}

	log.Printf("[bus] scan complete: %d/%d online (%s)", s.reg.OnlineCount(), mkr5.MaxPumps, s.stats)
	return s.reg.Snapshot(), nil
}

// Status requests and decodes the pump status byte.
func (s *Session) Status(ctx context.Context, addr uint8) (*mkr5.Result, error) {
	return s.Request(ctx, addr, mkr5.CmdReturnStatus, 0, nil)
}

// FillingInfo requests the last filling's amount, volume and unit price.
func (s *Session) FillingInfo(ctx context.Context, addr, nozzle uint8) (*mkr5.FillingInfo, error) {
	res, err := s.Request(ctx, addr, mkr5.CmdReturnFillingInfo, nozzle, nil)
	if err != nil {
		return nil, err
	}
	if res.Kind != mkr5.ResultFilling {
		return nil, fmt.Errorf("0x%02X answered %s to a filling request", addr, res.Kind)
	}
	filling := res.Filling
	return &filling, nil
}

// UpdatePrices sends a PRICE_UPDATE carrying one BCD-packed unit price per
// nozzle, in nozzle order starting at nozzle 1.
func (s *Session) UpdatePrices(ctx context.Context, addr uint8, prices []uint32) (*mkr5.Result, error) {
	if len(prices) == 0 {
		return nil, errors.New("no prices to send")
	}

	payload := make([]byte, 0, len(prices)*s.dec.Widths.UnitPrice)
	for i, price := range prices {
		bcd, err := s.dec.EncodeUnitPrice(price)
		if err != nil {
			return nil, fmt.Errorf("price for nozzle %d: %w", i+1, err)
		}
		payload = append(payload, bcd...)
	}

	return s.Request(ctx, addr, mkr5.CmdPriceUpdate, 0, payload)
}

// SendCommand is the exposed command boundary consumed by the CLI and the
// HTTP facade.
func (s *Session) SendCommand(ctx context.Context, addr, command, nozzle uint8, payload []byte) (*mkr5.Result, error) {
	return s.Request(ctx, addr, command, nozzle, payload)
}

// isFatal reports whether an error should abort a scan rather than
// degrade one address.
func isFatal(err error) bool {
	var te *TransportError
	return errors.As(err, &te) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ParseNozzle parses a textual nozzle number. Nozzles share the command
// nibble, so 0 through 15.
func ParseNozzle(text string) (uint8, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(text), 10, 8)
	if err != nil || v > 0x0F {
		return 0, fmt.Errorf("invalid nozzle %q (want 0-15)", text)
	}
	return uint8(v), nil
}

// ParseAddress normalizes a textual pump address, hexadecimal ("0x50",
// "50h") or decimal ("80"), to the integer address, enforcing the
// protocol range.
func ParseAddress(text string) (uint8, error) {
	text = strings.TrimSpace(strings.ToLower(text))

	var (
		v   uint64
		err error
	)
	switch {
	case strings.HasPrefix(text, "0x"):
		v, err = strconv.ParseUint(text[2:], 16, 8)
	case strings.HasSuffix(text, "h"):
		v, err = strconv.ParseUint(strings.TrimSuffix(text, "h"), 16, 8)
	default:
		v, err = strconv.ParseUint(text, 10, 8)
	}
	if err != nil {
		return 0, fmt.Errorf("invalid pump address %q", text)
	}
	if !mkr5.ValidAddress(uint8(v)) {
		return 0, fmt.Errorf("0x%02X: %w", v, ErrAddressRange)
	}
	return uint8(v), nil
}
