package agents

import (
	"errors"
	"fmt"
	"strings"
)

// Wildcard marks an absent segment inside an agent code.
const Wildcard = "00000"

const segmentWidth = 5

// ErrInvalidCode is returned when an agent code does not follow the
// three-segment numeric layout.
var ErrInvalidCode = errors.New("agents: invalid agent code")

// AgentType is the closed set of roles inside the sales hierarchy.
type AgentType string

const (
	TypeMasterAgent     AgentType = "masterAgent"
	TypeAgent           AgentType = "agent"
	TypeConsultantAgent AgentType = "consultantAgent"
)

// Known reports whether the type is one of the supported hierarchy roles.
func (t AgentType) Known() bool {
	switch t {
	case TypeMasterAgent, TypeAgent, TypeConsultantAgent:
		return true
	}
	return false
}

// CodeNumbers is the decoded form of an agent code: the master-agent, agent
// and consultant numbers, each five digits with "00000" standing for absence.
type CodeNumbers struct {
	Master     string `json:"masterAgentNumber"`
	Agent      string `json:"agentNumber"`
	Consultant string `json:"consultantNumber"`
}

// ParseCode decodes a "AAAAA-BBBBB-CCCCC" agent code.
func ParseCode(code string) (CodeNumbers, error) {
	parts := strings.Split(strings.TrimSpace(code), "-")
	if len(parts) != 3 {
		return CodeNumbers{}, fmt.Errorf("%w: %q", ErrInvalidCode, code)
	}
	for _, part := range parts {
		if len(part) != segmentWidth {
			return CodeNumbers{}, fmt.Errorf("%w: %q", ErrInvalidCode, code)
		}
		for _, r := range part {
			if r < '0' || r > '9' {
				return CodeNumbers{}, fmt.Errorf("%w: %q", ErrInvalidCode, code)
			}
		}
	}
	return CodeNumbers{Master: parts[0], Agent: parts[1], Consultant: parts[2]}, nil
}

// Agent is a point-in-time snapshot of one hierarchy member as supplied by
// the external agent store.
type Agent struct {
	UserID string    `json:"userId"`
	Name   string    `json:"name"`
	Type   AgentType `json:"type"`
	// Code positions the agent inside the hierarchy, e.g. "00002-00013-00000"
	// for the thirteenth agent under master agent two.
	Code string `json:"agentCode"`
	// AgentNumber is the number assigned to the agent within its own level.
	// Historically renumbered records may carry a stale value here; lookups
	// then fall back to the number decoded from Code.
	AgentNumber string `json:"agentNumber,omitempty"`
	// Numbers optionally carries the precomputed code breakdown.
	Numbers *CodeNumbers `json:"commissionNumbers,omitempty"`
}

// numbers returns the decoded code segments, preferring the precomputed
// breakdown when present.
func (a Agent) numbers() (CodeNumbers, bool) {
	if a.Numbers != nil {
		return *a.Numbers, true
	}
	parsed, err := ParseCode(a.Code)
	if err != nil {
		return CodeNumbers{}, false
	}
	return parsed, true
}

// CurrentNumber decodes the segment identifying this agent within its own
// level: the first segment for master agents, the second for agents, the
// third for consultants. It returns false when the code is unusable.
func (a Agent) CurrentNumber() (string, bool) {
	nums, ok := a.numbers()
	if !ok {
		return "", false
	}
	var number string
	switch a.Type {
	case TypeMasterAgent:
		number = nums.Master
	case TypeAgent:
		number = nums.Agent
	case TypeConsultantAgent:
		number = nums.Consultant
	default:
		return "", false
	}
	if number == "" || number == Wildcard {
		return "", false
	}
	return number, true
}

// matchesNumber reports whether the agent answers to the given reference
// number, either through its assigned number or through the number cached in
// its code.
func (a Agent) matchesNumber(ref string) bool {
	if ref == "" || ref == Wildcard {
		return false
	}
	if a.AgentNumber == ref {
		return true
	}
	current, ok := a.CurrentNumber()
	return ok && current == ref
}
