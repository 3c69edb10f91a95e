package dto

import (
	"errors"
	"strconv"
	"strings"
)

// ErrInvalidAmount sinaliza valor monetário não inteiro no payload
var ErrInvalidAmount = errors.New("invalid amount")

// Amount aceita número JSON ou string numérica, desde que seja inteiro.
// "1000" e 1000 valem o mesmo; "10.5", 10.5 e lixo são rejeitados.
type Amount int64

func (a *Amount) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" || s == "" {
		*a = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return ErrInvalidAmount
	}
	*a = Amount(v)
	return nil
}

func (a Amount) Int64() int64 { return int64(a) }
