package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/aussiebroadwan/askbar/pkg/identitysdk"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printKV(w io.Writer, rows [][2]string) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, row := range rows {
		_, _ = fmt.Fprintf(tw, "%s\t%s\n", row[0], orDash(row[1]))
	}
	_ = tw.Flush()
}

func printProfile(w io.Writer, p *identitysdk.Profile) {
	printKV(w, [][2]string{
		{"username", p.Username},
		{"role", string(p.Role)},
		{"level", strconv.Itoa(p.Level)},
		{"points", strconv.Itoa(p.Points)},
		{"bio", p.Bio},
		{"avatar", p.AvatarURL},
		{"interests", strings.Join(p.Interests, ", ")},
		{"questions", strconv.Itoa(p.QuestionsAsked)},
		{"answers", strconv.Itoa(p.AnswersGiven)},
		{"joined", formatTime(p.CreatedAt)},
	})
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
