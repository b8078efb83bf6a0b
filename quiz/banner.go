/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package quiz

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Announce is a single announcement published for a banner.
type Announce struct {
	Revision     int    // 0 when the corpus carries no revision
	StartTime    string // "2006-01-02 15:04:05" or "2006-01-02"
	BannerLife   string
	AnnounceLife string
	Content      string
	Publisher    string
}

// Banner is one corpus entry. Index 0 of a corpus is a placeholder and is
// never asked about.
type Banner struct {
	Index     int
	Game      string
	Character string
	Announces []Announce
}

type rawAnnounce struct {
	Revision     json.RawMessage `json:"revision"`
	StartTime    string          `json:"start_time"`
	BannerLife   *string         `json:"banner_life"`
	AnnounceLife *string         `json:"announce_life"`
	Content      string          `json:"content"`
	Publisher    string          `json:"publisher"`
}

type rawBanner struct {
	Index     json.RawMessage `json:"index"`
	Game      *string         `json:"game"`
	Character *string         `json:"character"`
	Announces []Announce      `json:"announces"`
}

var errNoDigits = errors.New("no digits found")

// parseNumber accepts a JSON number or a string whose digits form the number,
// so "外·337" reads as 337. The second return is false for null or "".
func parseNumber(raw json.RawMessage) (int, bool, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false, nil
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false, err
		}
		if s == "" {
			return 0, false, nil
		}

		var digits strings.Builder
		for _, r := range s {
			if r >= '0' && r <= '9' {
				digits.WriteRune(r)
			}
		}
		if digits.Len() == 0 {
			return 0, false, fmt.Errorf("%q: %w", s, errNoDigits)
		}

		n, err := strconv.Atoi(digits.String())
		if err != nil {
			return 0, false, err
		}
		return n, true, nil
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, false, fmt.Errorf("invalid number %s: %w", raw, err)
	}
	if f < 0 {
		return 0, false, fmt.Errorf("negative number %s", raw)
	}
	return int(f), true, nil
}

func (a *Announce) UnmarshalJSON(data []byte) error {
	var raw rawAnnounce
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	revision, _, err := parseNumber(raw.Revision)
	if err != nil {
		return fmt.Errorf("revision: %w", err)
	}

	*a = Announce{
		Revision:  revision,
		StartTime: raw.StartTime,
		Content:   raw.Content,
		Publisher: raw.Publisher,
	}
	if raw.BannerLife != nil {
		a.BannerLife = *raw.BannerLife
	}
	if raw.AnnounceLife != nil {
		a.AnnounceLife = *raw.AnnounceLife
	}

	return nil
}

func (b *Banner) UnmarshalJSON(data []byte) error {
	var raw rawBanner
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	index, ok, err := parseNumber(raw.Index)
	if err != nil {
		return fmt.Errorf("index: %w", err)
	}
	if !ok {
		return errors.New("index: missing")
	}

	*b = Banner{
		Index:     index,
		Announces: raw.Announces,
	}
	if raw.Game != nil {
		b.Game = *raw.Game
	}
	if raw.Character != nil {
		b.Character = *raw.Character
	}

	return nil
}

// Load reads a JSON array of banners from path.
func Load(path string) ([]Banner, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var banners []Banner
	if err := json.Unmarshal(data, &banners); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return banners, nil
}
