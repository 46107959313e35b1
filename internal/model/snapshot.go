package model

import "fmt"

// Snapshot is a point-in-time copy of the three collections.
// Records are ordered most recent first.
type Snapshot struct {
	Clients  []Client  `json:"clients"`
	Projects []Project `json:"projects"`
	Payments []Payment `json:"payments"`
}

// ProjectWithClient is a project joined with its client.
// Client is nil when the reference is dangling.
type ProjectWithClient struct {
	Project
	Client *Client `json:"client"`
}

// PaymentWithRefs is a payment joined with its project and that project's client
type PaymentWithRefs struct {
	Payment
	Project *Project `json:"project"`
	Client  *Client  `json:"client"`
}

// Clone returns a copy that shares no slices with s
func (s *Snapshot) Clone() *Snapshot {
	return &Snapshot{
		Clients:  append([]Client(nil), s.Clients...),
		Projects: append([]Project(nil), s.Projects...),
		Payments: append([]Payment(nil), s.Payments...),
	}
}

// Add appends rec to the matching collection
func (s *Snapshot) Add(rec Record) error {
	switch r := rec.(type) {
	case Client:
		s.Clients = append(s.Clients, r)
	case Project:
		s.Projects = append(s.Projects, r)
	case Payment:
		s.Payments = append(s.Payments, r)
	default:
		return fmt.Errorf("unknown record type %T", rec)
	}
	return nil
}

// Records returns the records of one collection in snapshot order
func (s *Snapshot) Records(entity Entity) []Record {
	var out []Record
	switch entity {
	case EntityClient:
		for _, c := range s.Clients {
			out = append(out, c)
		}
	case EntityProject:
		for _, p := range s.Projects {
			out = append(out, p)
		}
	case EntityPayment:
		for _, p := range s.Payments {
			out = append(out, p)
		}
	}
	return out
}

// Len returns the total number of records
func (s *Snapshot) Len() int {
	return len(s.Clients) + len(s.Projects) + len(s.Payments)
}

// Client looks up a client by id
func (s *Snapshot) Client(id string) *Client {
	for i := range s.Clients {
		if s.Clients[i].ID == id {
			c := s.Clients[i]
			return &c
		}
	}
	return nil
}

// Project looks up a project by id
func (s *Snapshot) Project(id string) *Project {
	for i := range s.Projects {
		if s.Projects[i].ID == id {
			p := s.Projects[i]
			return &p
		}
	}
	return nil
}

// Payment looks up a payment by id
func (s *Snapshot) Payment(id string) *Payment {
	for i := range s.Payments {
		if s.Payments[i].ID == id {
			p := s.Payments[i]
			return &p
		}
	}
	return nil
}

// ProjectsByClient returns the projects owned by clientID
func (s *Snapshot) ProjectsByClient(clientID string) []Project {
	var out []Project
	for _, p := range s.Projects {
		if p.ClientID == clientID {
			out = append(out, p)
		}
	}
	return out
}

// PaymentsByProject returns the payments attached to projectID
func (s *Snapshot) PaymentsByProject(projectID string) []Payment {
	var out []Payment
	for _, p := range s.Payments {
		if p.ProjectID == projectID {
			out = append(out, p)
		}
	}
	return out
}

// PaymentsByClient returns the payments of every project owned by clientID
func (s *Snapshot) PaymentsByClient(clientID string) []Payment {
	var out []Payment
	for _, p := range s.ProjectsByClient(clientID) {
		out = append(out, s.PaymentsByProject(p.ID)...)
	}
	return out
}

// ProjectsWithClient joins every project with its client
func (s *Snapshot) ProjectsWithClient() []ProjectWithClient {
	clients := s.clientIndex()
	out := make([]ProjectWithClient, 0, len(s.Projects))
	for _, p := range s.Projects {
		out = append(out, ProjectWithClient{Project: p, Client: clients[p.ClientID]})
	}
	return out
}

// PaymentsWithProjectAndClient joins every payment with its project and client
func (s *Snapshot) PaymentsWithProjectAndClient() []PaymentWithRefs {
	clients := s.clientIndex()
	projects := s.projectIndex()
	out := make([]PaymentWithRefs, 0, len(s.Payments))
	for _, p := range s.Payments {
		out = append(out, s.joinPayment(p, projects, clients))
	}
	return out
}

// JoinPayment attaches the project and client of a single payment
func (s *Snapshot) JoinPayment(p Payment) PaymentWithRefs {
	return s.joinPayment(p, s.projectIndex(), s.clientIndex())
}

// CheckRefs reports the first project whose client, or payment whose
// project, is missing from the snapshot
func (s *Snapshot) CheckRefs() error {
	clients := s.clientIndex()
	for _, p := range s.Projects {
		if clients[p.ClientID] == nil {
			return fmt.Errorf("%w: project %s references missing client %q", ErrMalformedImport, p.ID, p.ClientID)
		}
	}
	projects := s.projectIndex()
	for _, p := range s.Payments {
		if projects[p.ProjectID] == nil {
			return fmt.Errorf("%w: payment %s references missing project %q", ErrMalformedImport, p.ID, p.ProjectID)
		}
	}
	return nil
}

func (s *Snapshot) joinPayment(p Payment, projects map[string]*Project, clients map[string]*Client) PaymentWithRefs {
	joined := PaymentWithRefs{Payment: p, Project: projects[p.ProjectID]}
	if joined.Project != nil {
		joined.Client = clients[joined.Project.ClientID]
	}
	return joined
}

func (s *Snapshot) clientIndex() map[string]*Client {
	idx := make(map[string]*Client, len(s.Clients))
	for i := range s.Clients {
		c := s.Clients[i]
		idx[c.ID] = &c
	}
	return idx
}

func (s *Snapshot) projectIndex() map[string]*Project {
	idx := make(map[string]*Project, len(s.Projects))
	for i := range s.Projects {
		p := s.Projects[i]
		idx[p.ID] = &p
	}
	return idx
}
