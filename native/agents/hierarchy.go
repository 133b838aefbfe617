package agents

import "github.com/shopspring/decimal"

// Role share percentages of the referral pool. A master agent keeps the whole
// pool; agents and consultants keep 70% and pass the remainder up the line.
var (
	shareFull          = decimal.NewFromInt(100)
	shareSelf          = decimal.NewFromInt(70)
	shareAgentUpline   = decimal.NewFromInt(30)
	shareConsultantMid = decimal.NewFromInt(20)
	shareConsultantTop = decimal.NewFromInt(10)
)

// Share is one ordered entry of a resolved commission split. Percent is the
// recipient's share of the referral pool expressed as a 0-100 number.
type Share struct {
	UserID  string
	Name    string
	Type    AgentType
	Percent decimal.Decimal
}

// ResolveShares walks the subject's upline and returns the ordered commission
// split for its role. Unresolvable uplines are omitted: their share is
// forfeited, never redistributed, so the percentages always sum to at most
// 100.
func ResolveShares(subject Agent, snapshot []Agent) []Share {
	switch subject.Type {
	case TypeMasterAgent:
		return resolveMasterAgent(subject)
	case TypeAgent:
		return resolveAgent(subject, snapshot)
	case TypeConsultantAgent:
		return resolveConsultantAgent(subject, snapshot)
	}
	return nil
}

func resolveMasterAgent(subject Agent) []Share {
	return []Share{selfShare(subject, shareFull)}
}

func resolveAgent(subject Agent, snapshot []Agent) []Share {
	shares := []Share{selfShare(subject, shareSelf)}
	nums, ok := subject.numbers()
	if !ok {
		return shares
	}
	if master, found := findByNumber(snapshot, TypeMasterAgent, nums.Master); found {
		shares = append(shares, uplineShare(master, shareAgentUpline))
	}
	return shares
}

func resolveConsultantAgent(subject Agent, snapshot []Agent) []Share {
	shares := []Share{selfShare(subject, shareSelf)}
	nums, ok := subject.numbers()
	if !ok {
		return shares
	}
	if agent, found := findByNumber(snapshot, TypeAgent, nums.Agent); found {
		shares = append(shares, uplineShare(agent, shareConsultantMid))
	}
	if master, found := findByNumber(snapshot, TypeMasterAgent, nums.Master); found {
		shares = append(shares, uplineShare(master, shareConsultantTop))
	}
	return shares
}

func selfShare(subject Agent, percent decimal.Decimal) Share {
	return Share{UserID: subject.UserID, Name: subject.Name, Type: subject.Type, Percent: percent}
}

func uplineShare(upline Agent, percent decimal.Decimal) Share {
	return Share{UserID: upline.UserID, Name: upline.Name, Type: upline.Type, Percent: percent}
}

func findByNumber(snapshot []Agent, want AgentType, ref string) (Agent, bool) {
	if ref == "" || ref == Wildcard {
		return Agent{}, false
	}
	for _, candidate := range snapshot {
		if candidate.Type != want {
			continue
		}
		if candidate.matchesNumber(ref) {
			return candidate, true
		}
	}
	return Agent{}, false
}

// FindRecruits returns the agents one level below the holder of the given
// code, i.e. the records whose upline reference matches the code's current
// number. The query feeds hierarchy displays only; it plays no part in
// commission money movement.
func FindRecruits(subject Agent, snapshot []Agent) []Agent {
	number, ok := subject.CurrentNumber()
	if !ok {
		return nil
	}
	var childType AgentType
	switch subject.Type {
	case TypeMasterAgent:
		childType = TypeAgent
	case TypeAgent:
		childType = TypeConsultantAgent
	default:
		return nil
	}
	var recruits []Agent
	for _, candidate := range snapshot {
		if candidate.Type != childType {
			continue
		}
		nums, ok := candidate.numbers()
		if !ok {
			continue
		}
		var parentRef string
		switch subject.Type {
		case TypeMasterAgent:
			parentRef = nums.Master
		case TypeAgent:
			parentRef = nums.Agent
		}
		if parentRef != "" && parentRef != Wildcard && parentRef == number {
			recruits = append(recruits, candidate)
		}
	}
	return recruits
}
