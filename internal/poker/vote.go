package poker

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// AbstainLiteral is how an abstain vote is written on the wire.
const AbstainLiteral = "NA"

// Scale is the set of numeric cards a participant can play.
var Scale = []int{1, 2, 3, 5, 8, 13}

// Vote is a cast vote: either a point value from Scale or an abstention.
// An unset vote is represented by a nil *Vote.
type Vote struct {
	Points  int
	Abstain bool
}

// PointsVote returns a numeric vote.
func PointsVote(points int) *Vote {
	return &Vote{Points: points}
}

// AbstainVote returns the not-applicable vote.
func AbstainVote() *Vote {
	return &Vote{Abstain: true}
}

// Numeric reports whether the vote carries points.
func (v *Vote) Numeric() bool {
	return v != nil && !v.Abstain
}

// Valid reports whether the vote is an abstention or a card on the scale.
func (v *Vote) Valid() bool {
	if v == nil {
		return false
	}
	if v.Abstain {
		return true
	}
	for _, card := range Scale {
		if card == v.Points {
			return true
		}
	}
	return false
}

func (v Vote) String() string {
	if v.Abstain {
		return AbstainLiteral
	}
	return strconv.Itoa(v.Points)
}

func (v Vote) MarshalJSON() ([]byte, error) {
	if v.Abstain {
		return json.Marshal(AbstainLiteral)
	}
	return []byte(strconv.Itoa(v.Points)), nil
}

func (v *Vote) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var literal string
		if err := json.Unmarshal(data, &literal); err != nil {
			return err
		}
		if literal != AbstainLiteral {
			return fmt.Errorf("vote: unknown literal %q", literal)
		}
		*v = Vote{Abstain: true}
		return nil
	}
	var number float64
	if err := json.Unmarshal(data, &number); err != nil {
		return fmt.Errorf("vote: %w", err)
	}
	if number != math.Trunc(number) {
		return fmt.Errorf("vote: %v is not a whole number", number)
	}
	*v = Vote{Points: int(number)}
	return nil
}

// ParseVote reads a vote from its wire text ("NA" or a number).
func ParseVote(text string) (*Vote, error) {
	if text == AbstainLiteral {
		return AbstainVote(), nil
	}
	points, err := strconv.Atoi(text)
	if err != nil {
		return nil, fmt.Errorf("parse vote %q: %w", text, ErrInvalidVote)
	}
	return PointsVote(points), nil
}
