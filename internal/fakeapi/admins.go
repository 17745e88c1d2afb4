package fakeapi

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

var (
	errEmailTaken    = errors.New("email already in use")
	errAdminNotFound = errors.New("admin not found")
)

type admin struct {
	ID           int    `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	IsSuperuser  bool   `json:"is_superuser"`
	IsActive     bool   `json:"is_active"`
}

// adminStore keeps the accounts allowed into the back office.
type adminStore struct {
	admins   map[int]*admin
	emailIds map[string]int
	nextID   int
	lock     sync.RWMutex
}

func newAdminStore() *adminStore {
	return &adminStore{
		admins:   make(map[int]*admin),
		emailIds: make(map[string]int),
		nextID:   1,
	}
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	return string(bytes), err
}

func checkPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func (s *adminStore) create(username, email, password string, superuser bool) (*admin, error) {
	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	email = strings.ToLower(strings.TrimSpace(email))
	if _, ok := s.emailIds[email]; ok {
		return nil, errEmailTaken
	}
	if username == "" {
		username, _, _ = strings.Cut(email, "@")
	}
	a := &admin{ID: s.nextID, Username: username, Email: email, PasswordHash: hash, IsSuperuser: superuser, IsActive: true}
	s.nextID++
	s.admins[a.ID] = a
	s.emailIds[email] = a.ID
	return a, nil
}

func (s *adminStore) delete(id int) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	a, ok := s.admins[id]
	if !ok {
		return errAdminNotFound
	}
	delete(s.emailIds, a.Email)
	delete(s.admins, id)
	return nil
}

func (s *adminStore) get(id int) (admin, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	a, ok := s.admins[id]
	if !ok {
		return admin{}, false
	}
	return *a, true
}

func (s *adminStore) byEmail(email string) (admin, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	id, ok := s.emailIds[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return admin{}, false
	}
	return *s.admins[id], true
}

func (s *adminStore) byUsername(username string) (admin, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	for _, a := range s.admins {
		if a.Username == username {
			return *a, true
		}
	}
	return admin{}, false
}

// authenticate checks a password, against one account when username is set or against any
// active account otherwise.
func (s *adminStore) authenticate(username, password string) (admin, bool) {
	for _, a := range s.list() {
		if !a.IsActive || (username != "" && a.Username != username) {
			continue
		}
		if checkPasswordHash(password, a.PasswordHash) {
			return a, true
		}
	}
	return admin{}, false
}

func (s *adminStore) setPassword(id int, password string) error {
	hash, err := hashPassword(password)
	if err != nil {
		return err
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	a, ok := s.admins[id]
	if !ok {
		return errAdminNotFound
	}
	a.PasswordHash = hash
	return nil
}

func (s *adminStore) list() []admin {
	s.lock.RLock()
	defer s.lock.RUnlock()
	out := make([]admin, 0, len(s.admins))
	for _, a := range s.admins {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
