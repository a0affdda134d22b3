// Package locale supplies translated labels, unit names and date fragments
// for the chart and the conditions summary.
package locale

import (
	_ "embed"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"weatherchart/internal/logger"
)

//go:embed strings.yaml
var rawStrings []byte

// Fallback is used when a language has no table or a key is missing.
const Fallback = "en"

// Strings is the translation table for one language.
type Strings struct {
	TempHi             string            `yaml:"temp_hi" json:"temp_hi"`
	TempLo             string            `yaml:"temp_lo" json:"temp_lo"`
	Precip             string            `yaml:"precip" json:"precip"`
	FeelsLike          string            `yaml:"feels_like" json:"feels_like"`
	CheckEntity        string            `yaml:"check_entity" json:"check_entity"`
	Weekdays           []string          `yaml:"weekdays" json:"weekdays"`
	Months             []string          `yaml:"months" json:"months"`
	CardinalDirections []string          `yaml:"cardinal_directions" json:"cardinal_directions"`
	Units              map[string]string `yaml:"units" json:"units"`
	Relative           Relative          `yaml:"relative" json:"relative"`
	Conditions         map[string]string `yaml:"conditions" json:"conditions"`
}

// Relative holds "time ago" templates.
type Relative struct {
	Now     string `yaml:"now"`
	Minute  string `yaml:"minute"`
	Minutes string `yaml:"minutes"`
	Hour    string `yaml:"hour"`
	Hours   string `yaml:"hours"`
}

// rtlScripts are written right to left.
var rtlScripts = map[string]bool{
	"Arab": true,
	"Hebr": true,
	"Thaa": true,
	"Syrc": true,
	"Nkoo": true,
	"Adlm": true,
}

var (
	loadOnce sync.Once
	tables   map[string]*Strings
	log      = logger.Component("locale")
)

func load() {
	loadOnce.Do(func() {
		raw := map[string]*Strings{}
		if err := yaml.Unmarshal(rawStrings, &raw); err != nil {
			panic(fmt.Sprintf("locale: embedded strings.yaml is invalid: %v", err))
		}
		base := raw[Fallback]
		for lang, s := range raw {
			if lang != Fallback {
				s.fillFrom(base)
			}
		}
		tables = raw
	})
}

// fillFrom copies every key missing from s out of base.
func (s *Strings) fillFrom(base *Strings) {
	if base == nil {
		return
	}
	fill := func(dst *string, src string) {
		if *dst == "" {
			*dst = src
		}
	}
	fill(&s.TempHi, base.TempHi)
	fill(&s.TempLo, base.TempLo)
	fill(&s.Precip, base.Precip)
	fill(&s.FeelsLike, base.FeelsLike)
	fill(&s.CheckEntity, base.CheckEntity)
	fill(&s.Relative.Now, base.Relative.Now)
	fill(&s.Relative.Minute, base.Relative.Minute)
	fill(&s.Relative.Minutes, base.Relative.Minutes)
	fill(&s.Relative.Hour, base.Relative.Hour)
	fill(&s.Relative.Hours, base.Relative.Hours)
	if len(s.Weekdays) != 7 {
		s.Weekdays = base.Weekdays
	}
	if len(s.Months) != 12 {
		s.Months = base.Months
	}
	if len(s.CardinalDirections) != 17 {
		s.CardinalDirections = base.CardinalDirections
	}
	s.Units = mergeMap(s.Units, base.Units)
	s.Conditions = mergeMap(s.Conditions, base.Conditions)
}

func mergeMap(dst, base map[string]string) map[string]string {
	out := make(map[string]string, len(base))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range dst {
		out[k] = v
	}
	return out
}

// Locale binds a language tag to its string table.
type Locale struct {
	Tag     language.Tag
	Strings *Strings
	rtl     bool
}

// Lookup resolves a language tag such as "de" or "pt-BR". Unknown or
// malformed tags fall back to English strings.
func Lookup(lang string) Locale {
	load()

	tag, err := language.Parse(lang)
	if err != nil || lang == "" {
		if lang != "" {
			log.Debug("Unknown language tag, using fallback", map[string]interface{}{"lang": lang})
		}
		tag = language.English
	}

	base, _ := tag.Base()
	s, ok := tables[base.String()]
	if !ok {
		s = tables[Fallback]
	}

	script, _ := tag.Script()
	return Locale{Tag: tag, Strings: s, rtl: rtlScripts[script.String()]}
}

// RTL reports whether the language is written right to left.
func (l Locale) RTL() bool {
	return l.rtl
}

// Weekday returns the upper-cased short weekday name.
func (l Locale) Weekday(t time.Time) string {
	return cases.Upper(l.Tag).String(l.Strings.Weekdays[int(t.Weekday())])
}

// Hour formats the hour of t, either "15" or "3 PM".
func (l Locale) Hour(t time.Time, use12h bool) string {
	if use12h {
		return t.Format("3 PM")
	}
	return t.Format("15")
}

// DateTime formats a tooltip title like "Fri, May 10, 14:00".
func (l Locale) DateTime(t time.Time, use12h bool) string {
	clock := t.Format("15:04")
	if use12h {
		clock = t.Format("3:04 PM")
	}
	return fmt.Sprintf("%s, %s %d, %s",
		l.Strings.Weekdays[int(t.Weekday())], l.Strings.Months[int(t.Month())-1], t.Day(), clock)
}

// Unit returns the translated unit name, or the unit itself.
func (l Locale) Unit(unit string) string {
	if s, ok := l.Strings.Units[unit]; ok {
		return s
	}
	return unit
}

// Condition translates a weather condition such as "partlycloudy".
func (l Locale) Condition(condition string) string {
	if s, ok := l.Strings.Conditions[condition]; ok {
		return s
	}
	return condition
}

// Ago renders how long ago something happened, in whole hours once past
// the first hour and in whole minutes before that.
func (l Locale) Ago(d time.Duration) string {
	minutes := int(d / time.Minute)
	hours := minutes / 60
	r := l.Strings.Relative
	switch {
	case hours > 1:
		return fmt.Sprintf(r.Hours, hours)
	case hours == 1:
		return r.Hour
	case minutes > 1:
		return fmt.Sprintf(r.Minutes, minutes)
	case minutes == 1:
		return r.Minute
	default:
		return r.Now
	}
}

// Languages lists the languages with a translation table.
func Languages() []string {
	load()
	out := make([]string, 0, len(tables))
	for lang := range tables {
		out = append(out, lang)
	}
	sort.Strings(out)
	return out
}
