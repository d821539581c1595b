package monitor

import "github.com/mmdatafocus/moldpark_backend/models"

// ResolveRecipients decides who a finding is delivered to. Owner-audience
// findings go to the subject's owner; admin-audience findings go to every
// administrator; critical findings go to both. Each user appears once.
func ResolveRecipients(f Finding, admins []Recipient) []Recipient {
	seen := make(map[uint]bool)
	var out []Recipient
	add := func(r Recipient) {
		if r.UserID == 0 || seen[r.UserID] {
			return
		}
		seen[r.UserID] = true
		out = append(out, r)
	}

	if f.Audience == AudienceOwner {
		if owner, ok := OwnerOf(f.Subject); ok {
			add(owner)
		}
	}
	if f.Audience == AudienceAdmins || f.Severity == SeverityCritical {
		for _, a := range admins {
			add(a)
		}
	}
	return out
}

// senderOf is the subject's owner, or nil for system findings.
func senderOf(f Finding) *uint {
	owner, ok := OwnerOf(f.Subject)
	if !ok {
		return nil
	}
	id := owner.UserID
	return &id
}

func RecipientFromUser(u models.User) Recipient {
	return Recipient{UserID: u.ID, Username: u.Username, Email: u.Email}
}

func RecipientsFromUsers(users []models.User) []Recipient {
	out := make([]Recipient, 0, len(users))
	for _, u := range users {
		out = append(out, RecipientFromUser(u))
	}
	return out
}

// Emails returns the non-empty addresses of rs.
func Emails(rs []Recipient) []string {
	var out []string
	for _, r := range rs {
		if r.Email != "" {
			out = append(out, r.Email)
		}
	}
	return out
}

func centerActor(c models.Center) CenterActor {
	return CenterActor{CenterID: c.ID, Name: c.Name, Owner: RecipientFromUser(c.User)}
}

func producerActor(p models.Producer) ProducerActor {
	return ProducerActor{ProducerID: p.ID, CompanyName: p.CompanyName, Owner: RecipientFromUser(p.User)}
}
