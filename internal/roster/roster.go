/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package roster parses student roster CSV files for course import.
// Parsing is lenient: malformed rows are collected as positioned errors
// and the good rows still import.
package roster

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// Student is one imported roster row.
type Student struct {
	Nombre string
	Cedula string // 9 digits, zero-padded
	Correo string
}

// Error is a positioned import problem.
type Error struct {
	Line    int
	Message string
}

func (e Error) Error() string { return fmt.Sprintf("line %d: %s", e.Line, e.Message) }

// Header synonyms accepted for each column, lower-cased.
var headerNames = map[string][]string{
	"nombre": {"nombre", "nombres", "nombre completo", "name", "estudiante"},
	"cedula": {"cedula", "cédula", "ci", "c.i.", "identificacion", "identificación"},
	"correo": {"correo", "correo electronico", "correo electrónico", "email", "e-mail"},
}

var (
	reDigits = regexp.MustCompile(`^[0-9]+$`)
	reEmail  = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// Parse reads a roster CSV. The first row must be a header naming at
// least the name and cedula columns (synonyms accepted, order free).
// Rows with problems are skipped and reported; Parse only fails outright
// when the header itself is unusable.
func Parse(r io.Reader) ([]Student, []Error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, []Error{{Line: 1, Message: "cannot read header: " + err.Error()}}
	}
	cols, err := mapHeader(header)
	if err != nil {
		return nil, []Error{{Line: 1, Message: err.Error()}}
	}

	var (
		students []Student
		errs     []Error
		seen     = map[string]int{}
	)
	line := 1
	for {
		line++
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			errs = append(errs, Error{Line: line, Message: err.Error()})
			continue
		}
		if blankRow(rec) {
			continue
		}

		s := Student{
			Nombre: field(rec, cols["nombre"]),
			Cedula: field(rec, cols["cedula"]),
		}
		if i, ok := cols["correo"]; ok {
			s.Correo = field(rec, i)
		}

		if s.Nombre == "" {
			errs = append(errs, Error{Line: line, Message: "missing name"})
			continue
		}
		ced, err := NormalizeCedula(s.Cedula)
		if err != nil {
			errs = append(errs, Error{Line: line, Message: err.Error()})
			continue
		}
		s.Cedula = ced
		if s.Correo != "" && !reEmail.MatchString(s.Correo) {
			errs = append(errs, Error{Line: line, Message: fmt.Sprintf("invalid email %q", s.Correo)})
			continue
		}
		if prev, dup := seen[s.Cedula]; dup {
			errs = append(errs, Error{Line: line, Message: fmt.Sprintf("duplicate cedula %s (first on line %d)", s.Cedula, prev)})
			continue
		}
		seen[s.Cedula] = line
		students = append(students, s)
	}
	return students, errs
}

// NormalizeCedula validates a cedula and zero-pads it to 9 digits, the
// canonical stored form.
func NormalizeCedula(raw string) (string, error) {
	c := strings.ReplaceAll(strings.TrimSpace(raw), "-", "")
	c = strings.ReplaceAll(c, ".", "")
	if c == "" {
		return "", fmt.Errorf("missing cedula")
	}
	if !reDigits.MatchString(c) {
		return "", fmt.Errorf("cedula %q is not numeric", raw)
	}
	if len(c) > 9 {
		return "", fmt.Errorf("cedula %q longer than 9 digits", raw)
	}
	return strings.Repeat("0", 9-len(c)) + c, nil
}

func mapHeader(header []string) (map[string]int, error) {
	cols := map[string]int{}
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		for canon, names := range headerNames {
			for _, n := range names {
				if key == n {
					if _, dup := cols[canon]; !dup {
						cols[canon] = i
					}
				}
			}
		}
	}
	if _, ok := cols["nombre"]; !ok {
		return nil, fmt.Errorf("header missing a name column")
	}
	if _, ok := cols["cedula"]; !ok {
		return nil, fmt.Errorf("header missing a cedula column")
	}
	return cols, nil
}

func field(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func blankRow(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
