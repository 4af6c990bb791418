// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package validation

import (
	"fmt"
	"strings"
)

// SubjectValidator helps validate a publishable broker subject.
// Wildcard tokens are rejected: components publish to concrete subjects only.
type SubjectValidator struct {
	subject string
}

// making sure the given struct implements the given interface
var _ Validator = (*SubjectValidator)(nil)

// NewSubjectValidator creates an instance of SubjectValidator
func NewSubjectValidator(subject string) *SubjectValidator {
	return &SubjectValidator{subject: subject}
}

// Validate implements validation.Validator.
func (v *SubjectValidator) Validate() error {
	subject := v.subject
	if strings.TrimSpace(subject) == "" {
		return fmt.Errorf("invalid subject=(%s): subject is required", subject)
	}

	for _, token := range strings.Split(subject, ".") {
		switch {
		case token == "":
			return fmt.Errorf("invalid subject=(%s): empty token", subject)
		case token == "*" || token == ">":
			return fmt.Errorf("invalid subject=(%s): wildcard token", subject)
		case strings.ContainsAny(token, " \t\r\n"):
			return fmt.Errorf("invalid subject=(%s): whitespace in token", subject)
		}
	}

	return nil
}
