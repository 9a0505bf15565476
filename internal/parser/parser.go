// Package parser decodes topic files and extracts bullet points from their documentation blocks.
package parser

import (
	"encoding/base64"
	"errors"
	"regexp"
	"strings"

	"github.com/starford/cheatsheet/internal/apperr"
	"github.com/starford/cheatsheet/internal/models"
)

var (
	docBlockRe    = regexp.MustCompile(`(?s)/\*\*(.*?)\*/`)
	commentStarRe = regexp.MustCompile(`^\s*\*(?: |$)?`)
	subBulletRe   = regexp.MustCompile(`^\s+\* (.*)$`)
)

const (
	bullet = "* "
	fence  = "```"
)

// Decode returns the text of base64 file content as served by the GitHub
// contents API (which wraps the payload at 60 columns).
// Content that decodes to nothing is a read failure.
func Decode(content string) (string, error) {
	compact := strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', ' ', '\t':
			return -1
		}
		return r
	}, content)

	data, err := base64.StdEncoding.DecodeString(compact)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(compact)
		if err != nil {
			return "", apperr.ReadFile(err)
		}
	}
	if len(data) == 0 {
		return "", apperr.ReadFile(errors.New("parser: decoded content is empty"))
	}
	return string(data), nil
}

// Parse extracts points from every documentation block in text.
// Points without a heading are dropped; the rest are numbered from 1 in order of appearance.
func Parse(text string) []models.Point {
	var out []models.Point
	for _, block := range docBlocks(text) {
		for _, raw := range rawPoints(block) {
			p := buildPoint(raw)
			if p.Heading == "" {
				continue
			}
			p.Number = len(out) + 1
			out = append(out, p)
		}
	}
	return out
}

// docBlocks returns the un-commented body lines of each /** ... */ block.
func docBlocks(text string) [][]string {
	matches := docBlockRe.FindAllStringSubmatch(text, -1)
	blocks := make([][]string, 0, len(matches))
	for _, m := range matches {
		var lines []string
		for _, line := range strings.Split(strings.ReplaceAll(m[1], "\r\n", "\n"), "\n") {
			if loc := commentStarRe.FindStringIndex(line); loc != nil {
				line = line[loc[1]:]
			}
			lines = append(lines, strings.TrimRight(line, " \t"))
		}
		blocks = append(blocks, trimBlankEdges(lines))
	}
	return blocks
}

// rawPoints splits block lines at every top-level bullet. Lines before the
// first bullet form a headless raw point.
func rawPoints(lines []string) [][]string {
	var (
		out     [][]string
		current []string
		inCode  bool
	)
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), fence) {
			inCode = !inCode
		} else if !inCode && strings.HasPrefix(line, bullet) {
			if len(current) > 0 {
				out = append(out, current)
			}
			current = nil
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		out = append(out, current)
	}
	return out
}

func buildPoint(raw []string) models.Point {
	p := models.Point{
		Raw:       strings.Join(raw, "\n"),
		SubPoints: []string{},
		Snippets:  []string{},
	}

	var (
		text    []string
		code    []string
		inCode  bool
		lastSub = -1
	)
	for _, line := range raw {
		if strings.HasPrefix(strings.TrimSpace(line), fence) {
			if inCode {
				p.Snippets = append(p.Snippets, dedent(code))
				code = nil
			}
			inCode = !inCode
			continue
		}
		if inCode {
			code = append(code, line)
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		text = append(text, line)

		switch {
		case strings.HasPrefix(line, bullet):
			p.Heading = strings.TrimSpace(strings.TrimPrefix(line, bullet))
		case subBulletRe.MatchString(line):
			p.SubPoints = append(p.SubPoints, strings.TrimSpace(subBulletRe.FindStringSubmatch(line)[1]))
			lastSub = len(p.SubPoints) - 1
		case lastSub >= 0:
			p.SubPoints[lastSub] += " " + strings.TrimSpace(line)
		case p.Heading != "":
			p.Heading += " " + strings.TrimSpace(line)
		}
	}
	// An unterminated fence still yields its snippet.
	if inCode && len(code) > 0 {
		p.Snippets = append(p.Snippets, dedent(code))
	}
	p.Text = strings.Join(text, "\n")
	return p
}

// dedent removes the indentation shared by all non-blank lines.
func dedent(lines []string) string {
	lines = trimBlankEdges(lines)
	indent := -1
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		n := len(l) - len(strings.TrimLeft(l, " \t"))
		if indent < 0 || n < indent {
			indent = n
		}
	}
	out := make([]string, len(lines))
	for i, l := range lines {
		if len(l) >= indent && indent > 0 {
			l = l[indent:]
		}
		out[i] = l
	}
	return strings.Join(out, "\n")
}

func trimBlankEdges(lines []string) []string {
	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
