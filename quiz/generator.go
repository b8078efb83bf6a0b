/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package quiz draws trivia challenges from a corpus of banner announcements.
package quiz

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"
)

const (
	placeholderQuestion = "No questions available"
	placeholderAnswer   = "N/A"
)

// Challenge is a question and the exact answer expected for it.
type Challenge struct {
	Question string
	Answer   string
}

func placeholder() Challenge {
	return Challenge{Question: placeholderQuestion, Answer: placeholderAnswer}
}

// builder produces a challenge about b, or false when b lacks the facts it needs.
type builder func(g *Generator, b *Banner) (Challenge, bool)

type category struct {
	name   string
	weight int
	build  builder
}

// categories are sampled by cumulative weight; the weights sum to 100.
var categories = []category{
	{name: "date", weight: 15, build: dateQuestion},
	{name: "duration", weight: 15, build: durationQuestion},
	{name: "attribution", weight: 2, build: attributionQuestion},
	{name: "pairing", weight: 58, build: pairingQuestion},
	{name: "excerpt", weight: 10, build: excerptQuestion},
}

func totalWeight() int {
	total := 0
	for _, c := range categories {
		total += c.weight
	}
	return total
}

// pickCategory maps a roll in [0, totalWeight()) onto a category.
func pickCategory(roll int) category {
	for _, c := range categories {
		if roll < c.weight {
			return c
		}
		roll -= c.weight
	}
	return categories[len(categories)-1]
}

// Generator is safe for concurrent use. The corpus is never modified after
// construction.
type Generator struct {
	banners []Banner

	mu  sync.Mutex
	rng *rand.Rand
}

type Option func(*Generator)

// WithRand replaces the random source, mostly for tests.
func WithRand(r *rand.Rand) Option {
	return func(g *Generator) {
		g.rng = r
	}
}

func New(banners []Banner, opts ...Option) *Generator {
	g := &Generator{
		banners: banners,
		rng:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// NewFromFile loads the corpus at path and returns a generator over it.
func NewFromFile(path string, opts ...Option) (*Generator, error) {
	banners, err := Load(path)
	if err != nil {
		return nil, err
	}
	return New(banners, opts...), nil
}

// Len reports the number of corpus entries, including the placeholder entry.
func (g *Generator) Len() int {
	return len(g.banners)
}

func (g *Generator) intN(n int) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.rng.IntN(n)
}

// Next draws a challenge. It never fails: an empty corpus yields a
// placeholder pair.
func (g *Generator) Next() Challenge {
	if len(g.banners) < 2 {
		return placeholder()
	}

	b := &g.banners[1+g.intN(len(g.banners)-1)]
	c := pickCategory(g.intN(totalWeight()))

	if ch, ok := c.build(g, b); ok {
		return ch
	}
	if ch, ok := attributionQuestion(g, b); ok {
		return ch
	}
	if ch, ok := pairingQuestion(g, b); ok {
		return ch
	}

	return placeholder()
}

// announceSuffix names the announce when the banner has more than one.
func announceSuffix(b *Banner, i int) string {
	if len(b.Announces) < 2 {
		return ""
	}
	revision := b.Announces[i].Revision
	if revision == 0 {
		revision = i + 1
	}
	return fmt.Sprintf("的第%d篇公告", revision)
}

func (g *Generator) randomAnnounce(b *Banner) (int, bool) {
	if len(b.Announces) == 0 {
		return 0, false
	}
	return g.intN(len(b.Announces)), true
}

// fallbackYear answers date questions about announces with no usable start time.
const fallbackYear = "2024"

var startTimeLayouts = []string{"2006-01-02 15:04:05", "2006-01-02"}

func parseStartTime(s string) (time.Time, bool) {
	for _, layout := range startTimeLayouts {
		if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func dateQuestion(g *Generator, b *Banner) (Challenge, bool) {
	i, ok := g.randomAnnounce(b)
	if !ok {
		return Challenge{}, false
	}

	t, ok := parseStartTime(b.Announces[i].StartTime)
	if !ok {
		return Challenge{
			Question: fmt.Sprintf("%d期公告娘发布", b.Index),
			Answer:   fallbackYear,
		}, true
	}

	fields := []struct {
		value int
		ask   string
	}{
		{t.Year(), "是哪一年发布的?"},
		{int(t.Month()), "是哪一月发布的?"},
		{t.Day(), "是该月几号发布的?"},
		{t.Hour(), "是当天几点发布的(精确到小时)?"},
	}
	f := fields[g.intN(len(fields))]

	return Challenge{
		Question: fmt.Sprintf("%d期公告娘%s%s", b.Index, announceSuffix(b, i), f.ask),
		Answer:   fmt.Sprint(f.value),
	}, true
}

const defaultLife = "7天"

// leadingNumber returns the digits and dots that prefix s.
func leadingNumber(s string) string {
	end := 0
	for end < len(s) && (s[end] == '.' || (s[end] >= '0' && s[end] <= '9')) {
		end++
	}
	return s[:end]
}

func durationQuestion(g *Generator, b *Banner) (Challenge, bool) {
	if len(b.Announces) == 0 {
		return Challenge{}, false
	}

	var life, suffix string
	if len(b.Announces) == 1 || g.intN(2) == 0 {
		life = b.Announces[0].BannerLife
	} else {
		i := g.intN(len(b.Announces))
		life = b.Announces[i].AnnounceLife
		suffix = announceSuffix(b, i)
	}
	if life == "" {
		life = defaultLife
	}

	answer := leadingNumber(life)
	if answer == "" {
		return Challenge{}, false
	}

	unit := "小时"
	if strings.Contains(life, "天") {
		unit = "天"
	}

	return Challenge{
		Question: fmt.Sprintf("%d期公告娘%s持续了几%s?", b.Index, suffix, unit),
		Answer:   answer,
	}, true
}

func attributionQuestion(g *Generator, b *Banner) (Challenge, bool) {
	i, ok := g.randomAnnounce(b)
	if !ok || b.Announces[i].Publisher == "" {
		return Challenge{}, false
	}

	return Challenge{
		Question: fmt.Sprintf("%d期公告娘%s是谁上传的?", b.Index, announceSuffix(b, i)),
		Answer:   b.Announces[i].Publisher,
	}, true
}

func pairingQuestion(g *Generator, b *Banner) (Challenge, bool) {
	if b.Game == "" || b.Character == "" {
		return attributionQuestion(g, b)
	}

	if g.intN(2) == 0 {
		return Challenge{
			Question: fmt.Sprintf("%d期公告娘是游戏%s里的哪个角色？", b.Index, b.Game),
			Answer:   b.Character,
		}, true
	}

	return Challenge{
		Question: fmt.Sprintf("%d期公告娘%s是哪个游戏里的角色？", b.Index, b.Character),
		Answer:   b.Game,
	}, true
}

func excerptQuestion(g *Generator, b *Banner) (Challenge, bool) {
	i, ok := g.randomAnnounce(b)
	if !ok {
		return Challenge{}, false
	}

	content := b.Announces[i].Content
	suffix := announceSuffix(b, i)

	if g.intN(10) > 1 {
		words := strings.Fields(content)
		if len(words) == 0 {
			return Challenge{}, false
		}
		return Challenge{
			Question: fmt.Sprintf("%d期公告娘%s的内容的第一个换行或空格之前的内容是什么？", b.Index, suffix),
			Answer:   words[0],
		}, true
	}

	var chars []rune
	for _, r := range content {
		if isCJK(r) {
			chars = append(chars, r)
		}
	}

	if len(chars) == 0 {
		if content == "" {
			return Challenge{}, false
		}
		return Challenge{
			Question: fmt.Sprintf("%d期公告娘%s的内容是什么？", b.Index, suffix),
			Answer:   content,
		}, true
	}

	n := g.intN(len(chars))
	return Challenge{
		Question: fmt.Sprintf("%d期公告娘%s的内容的第%d个字是什么(不包含英文字符和半角标点符号)？", b.Index, suffix, n+1),
		Answer:   string(chars[n]),
	}, true
}

// cjkRanges covers the unified ideographs, their extensions, CJK punctuation
// and full-width forms.
var cjkRanges = [][2]rune{
	{0x4E00, 0x9FFF},
	{0x3400, 0x4DBF},
	{0x20000, 0x2A6DF},
	{0x2A700, 0x2B73F},
	{0x2B740, 0x2B81F},
	{0x2B820, 0x2CEAF},
	{0x2CEB0, 0x2EBEF},
	{0x3000, 0x303F},
	{0xFF00, 0xFFEF},
}

func isCJK(r rune) bool {
	for _, rng := range cjkRanges {
		if r >= rng[0] && r <= rng[1] {
			return true
		}
	}
	return false
}
