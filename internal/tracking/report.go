package tracking

import (
	"context"
	"sort"
	"strings"

	"github.com/mailkite/mailkite/internal/models"
)

// Summarize computes the campaign aggregate from an event slice. All numbers
// are derived; nothing here is persisted.
func Summarize(campaignID string, events []Event, totalRecipients int) Summary {
	s := Summary{
		CampaignID:      campaignID,
		TotalRecipients: totalRecipients,
	}

	openers := map[string]bool{}
	clickers := map[string]bool{}

	for i := range events {
		ev := &events[i]
		email := strings.ToLower(ev.RecipientEmail)

		switch ev.Type {
		case EventOpened:
			s.TotalOpens++
			openers[email] = true
			ts := ev.Timestamp
			if s.FirstOpened == nil || ts.Before(*s.FirstOpened) {
				t := ts
				s.FirstOpened = &t
			}
			if s.LastOpened == nil || ts.After(*s.LastOpened) {
				t := ts
				s.LastOpened = &t
			}
		case EventClicked:
			s.TotalClicks++
			clickers[email] = true
		}
	}

	s.UniqueOpeners = len(openers)
	s.UniqueClickers = len(clickers)

	if totalRecipients > 0 {
		s.OpenRate = float64(s.UniqueOpeners) / float64(totalRecipients)
		s.ClickRate = float64(s.UniqueClickers) / float64(totalRecipients)
		s.AvgOpens = float64(s.TotalOpens) / float64(totalRecipients)
		s.AvgClicks = float64(s.TotalClicks) / float64(totalRecipients)
	}

	return s
}

// Breakdown groups events by recipient and classifies each campaign
// recipient into exactly one engagement tier. Precedence: a recipient who
// clicked at least once is Very Interested regardless of opens; one who
// opened but never clicked is Engaged; everyone else is Not Interested.
func Breakdown(events []Event, recipients []models.Recipient) []RecipientEngagement {
	byEmail := make(map[string]*RecipientEngagement, len(recipients))
	order := make([]string, 0, len(recipients))

	for _, r := range recipients {
		email := strings.ToLower(r.Email)
		if _, ok := byEmail[email]; ok {
			continue
		}
		byEmail[email] = &RecipientEngagement{Email: email, Name: r.Name}
		order = append(order, email)
	}

	for i := range events {
		ev := &events[i]
		email := strings.ToLower(ev.RecipientEmail)

		e, ok := byEmail[email]
		if !ok {
			// Event for an address outside the snapshot (forwarded mail,
			// edited campaign). Still counted.
			e = &RecipientEngagement{Email: email}
			byEmail[email] = e
			order = append(order, email)
		}

		switch ev.Type {
		case EventOpened:
			e.Opens++
			t := ev.Timestamp
			if e.LastOpened == nil || t.After(*e.LastOpened) {
				e.LastOpened = &t
			}
		case EventClicked:
			e.Clicks++
			t := ev.Timestamp
			if e.LastClicked == nil || t.After(*e.LastClicked) {
				e.LastClicked = &t
			}
		}
	}

	result := make([]RecipientEngagement, 0, len(order))
	for _, email := range order {
		e := byEmail[email]
		switch {
		case e.Clicks > 0:
			e.Tier = TierVeryInterested
		case e.Opens > 0:
			e.Tier = TierEngaged
		default:
			e.Tier = TierNotInterested
		}
		result = append(result, *e)
	}
	return result
}

// TopLinks groups click events by URL and ranks them by click count
// descending. A non-positive limit returns all links.
func TopLinks(events []Event, limit int) []LinkStat {
	counts := map[string]int{}
	for i := range events {
		if events[i].Type == EventClicked && events[i].ClickedURL != "" {
			counts[events[i].ClickedURL]++
		}
	}

	links := make([]LinkStat, 0, len(counts))
	for url, n := range counts {
		links = append(links, LinkStat{URL: url, Clicks: n})
	}

	sort.Slice(links, func(i, j int) bool {
		if links[i].Clicks != links[j].Clicks {
			return links[i].Clicks > links[j].Clicks
		}
		return links[i].URL < links[j].URL
	})

	if limit > 0 && len(links) > limit {
		links = links[:limit]
	}
	return links
}

// Aggregate loads a campaign's events and computes its summary.
func (s *Store) Aggregate(ctx context.Context, campaignID string, totalRecipients int) (Summary, error) {
	events, err := s.EventsByCampaign(ctx, campaignID)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(campaignID, events, totalRecipients), nil
}

// RecipientBreakdown loads a campaign's events and classifies its recipients.
func (s *Store) RecipientBreakdown(ctx context.Context, campaignID string, recipients []models.Recipient) ([]RecipientEngagement, error) {
	events, err := s.EventsByCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	return Breakdown(events, recipients), nil
}

// TopClickedLinks loads a campaign's events and ranks its clicked URLs.
func (s *Store) TopClickedLinks(ctx context.Context, campaignID string, limit int) ([]LinkStat, error) {
	events, err := s.EventsByCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	return TopLinks(events, limit), nil
}
