package model

import "strings"

// PipelineStatus is the lifecycle position of a prospect or deal.
type PipelineStatus string

const (
	StatusNew          PipelineStatus = "new"
	StatusQualified    PipelineStatus = "qualified"
	StatusInQuarantine PipelineStatus = "in_quarantine"
	StatusApproved     PipelineStatus = "approved"
	StatusDiscarded    PipelineStatus = "discarded"

	StatusDealDiscovery     PipelineStatus = "deal.discovery"
	StatusDealQualification PipelineStatus = "deal.qualification"
	StatusDealProposal      PipelineStatus = "deal.proposal"
	StatusDealNegotiation   PipelineStatus = "deal.negotiation"
	StatusDealClosedWon     PipelineStatus = "deal.closed_won"
	StatusDealClosedLost    PipelineStatus = "deal.closed_lost"
)

// AllStatuses lists every pipeline status in lifecycle order.
var AllStatuses = []PipelineStatus{
	StatusNew,
	StatusQualified,
	StatusInQuarantine,
	StatusApproved,
	StatusDiscarded,
	StatusDealDiscovery,
	StatusDealQualification,
	StatusDealProposal,
	StatusDealNegotiation,
	StatusDealClosedWon,
	StatusDealClosedLost,
}

const dealPrefix = "deal."

// Valid reports whether s is a known status.
func (s PipelineStatus) Valid() bool {
	for _, v := range AllStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// IsDeal reports whether s is one of the deal stages.
func (s PipelineStatus) IsDeal() bool {
	return strings.HasPrefix(string(s), dealPrefix)
}

// IsTerminal reports whether no further transition may leave s.
// Discarded is terminal apart from the administrative restore.
func (s PipelineStatus) IsTerminal() bool {
	return s == StatusDiscarded || s == StatusDealClosedWon || s == StatusDealClosedLost
}

// DealStage is a sales pipeline phase stored on a Deal.
type DealStage string

const (
	StageDiscovery     DealStage = "discovery"
	StageQualification DealStage = "qualification"
	StageProposal      DealStage = "proposal"
	StageNegotiation   DealStage = "negotiation"
	StageClosedWon     DealStage = "closed_won"
	StageClosedLost    DealStage = "closed_lost"
)

// Status returns the pipeline status for the stage.
func (d DealStage) Status() PipelineStatus {
	return PipelineStatus(dealPrefix + string(d))
}

// StageOf returns the deal stage encoded in a deal status.
func StageOf(s PipelineStatus) (DealStage, bool) {
	if !s.IsDeal() {
		return "", false
	}
	return DealStage(strings.TrimPrefix(string(s), dealPrefix)), true
}
