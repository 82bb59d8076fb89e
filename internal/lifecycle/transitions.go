package lifecycle

import "github.com/olvconsultores/stratevo/internal/model"

// statusPurged is the audit target of an irreversible purge. It is never
// stored on a record.
const statusPurged model.PipelineStatus = "purged"

// transitions is the legal-transition table. Every status has an entry;
// terminal statuses map to nothing. Restore and purge are administrative
// overrides handled outside the table.
var transitions = map[model.PipelineStatus][]model.PipelineStatus{
	model.StatusNew:          {model.StatusQualified},
	model.StatusQualified:    {model.StatusInQuarantine},
	model.StatusInQuarantine: {model.StatusApproved, model.StatusDiscarded},
	model.StatusApproved:     {model.StatusDealDiscovery},
	model.StatusDiscarded:    nil,
	model.StatusDealDiscovery: {
		model.StatusDealQualification, model.StatusDealClosedWon, model.StatusDealClosedLost,
	},
	model.StatusDealQualification: {
		model.StatusDealProposal, model.StatusDealClosedWon, model.StatusDealClosedLost,
	},
	model.StatusDealProposal: {
		model.StatusDealNegotiation, model.StatusDealClosedWon, model.StatusDealClosedLost,
	},
	model.StatusDealNegotiation: {model.StatusDealClosedWon, model.StatusDealClosedLost},
	model.StatusDealClosedWon:   nil,
	model.StatusDealClosedLost:  nil,
}

// dealOrder is the forward path of open deal stages.
var dealOrder = []model.DealStage{
	model.StageDiscovery,
	model.StageQualification,
	model.StageProposal,
	model.StageNegotiation,
}

// Allowed reports whether from -> to is in the legal-transition table.
func Allowed(from, to model.PipelineStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Targets returns the statuses reachable from s in one legal step.
func Targets(s model.PipelineStatus) []model.PipelineStatus {
	out := make([]model.PipelineStatus, len(transitions[s]))
	copy(out, transitions[s])
	return out
}

// NextStage returns the open stage following s. Negotiation and closed
// stages have no next stage.
func NextStage(s model.DealStage) (model.DealStage, bool) {
	for i, st := range dealOrder {
		if st == s && i+1 < len(dealOrder) {
			return dealOrder[i+1], true
		}
	}
	return "", false
}
