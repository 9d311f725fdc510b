package repository

import (
	"BizLink/entity"
)

// MergePlan describes how a group of duplicate conversations collapses
// into one surviving document.
type MergePlan struct {
	KeepID      string
	DropIDs     []string
	UnreadCount map[string]int
	DeletedFor  map[string]bool
	LastMessage *entity.LastMessage
}

// PlanMerge computes the merge for one duplicate group. The oldest
// conversation survives and absorbs the summed unread counters and the
// freshest last message. A soft-delete flag survives only if every
// duplicate carried it, since the merged conversation must stay visible
// to a participant who still sees any of the duplicates.
func PlanMerge(group []entity.Conversation) MergePlan {
	if len(group) == 0 {
		return MergePlan{}
	}

	keep := group[0]
	for _, c := range group[1:] {
		if c.CreatedAt.Before(keep.CreatedAt) {
			keep = c
		}
	}

	plan := MergePlan{
		KeepID:      keep.ID,
		UnreadCount: map[string]int{},
	}

	deletedVotes := map[string]int{}
	for _, c := range group {
		if c.ID != keep.ID {
			plan.DropIDs = append(plan.DropIDs, c.ID)
		}
		for user, n := range c.UnreadCount {
			if n > 0 {
				plan.UnreadCount[user] += n
			}
		}
		for user, del := range c.DeletedFor {
			if del {
				deletedVotes[user]++
			}
		}
		if lm := c.LastMessage; lm != nil {
			if plan.LastMessage == nil || lm.Timestamp.After(plan.LastMessage.Timestamp) {
				plan.LastMessage = lm
			}
		}
	}

	for _, user := range keep.Participants {
		if _, ok := plan.UnreadCount[user]; !ok {
			plan.UnreadCount[user] = 0
		}
		if deletedVotes[user] == len(group) {
			if plan.DeletedFor == nil {
				plan.DeletedFor = map[string]bool{}
			}
			plan.DeletedFor[user] = true
		}
	}

	return plan
}
