// Package file provides a PatientStore backed by a YAML or JSON fixture.
package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/carebot/internal/core/domain"
	"github.com/custodia-labs/carebot/internal/core/ports/driven"
)

// Ensure PatientStore implements the interface.
var _ driven.PatientStore = (*PatientStore)(nil)

// PatientStore serves discharge records read from a file.
// JSON is accepted since it parses as YAML.
type PatientStore struct {
	path string

	mu       sync.RWMutex
	patients []domain.Patient
}

// NewPatientStore loads the records at path.
func NewPatientStore(path string) (*PatientStore, error) {
	s := &PatientStore{path: path}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads the file.
func (s *PatientStore) Reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read patients file: %w", err)
	}

	patients, err := parse(data)
	if err != nil {
		return fmt.Errorf("parse %s: %w", s.path, err)
	}

	s.mu.Lock()
	s.patients = patients
	s.mu.Unlock()
	return nil
}

// parse accepts a top-level list of records or a mapping with a
// "patients" list.
func parse(data []byte) ([]domain.Patient, error) {
	var list []domain.Patient
	if err := yaml.Unmarshal(data, &list); err == nil {
		return validate(list)
	}

	var doc struct {
		Patients []domain.Patient `yaml:"patients"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return validate(doc.Patients)
}

func validate(patients []domain.Patient) ([]domain.Patient, error) {
	for i, p := range patients {
		if strings.TrimSpace(p.Name) == "" {
			return nil, fmt.Errorf("record %d: patient_name is required", i)
		}
	}
	return patients, nil
}

// FindByName returns the first record whose name matches case-insensitively.
func (s *PatientStore) FindByName(_ context.Context, name string) (*domain.Patient, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("patient name is required")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.patients {
		if strings.EqualFold(strings.TrimSpace(s.patients[i].Name), name) {
			p := s.patients[i]
			p.Medications = append([]string(nil), p.Medications...)
			return &p, nil
		}
	}
	return nil, fmt.Errorf("%q: %w", name, domain.ErrPatientNotFound)
}

// List returns a copy of every record.
func (s *PatientStore) List(_ context.Context) ([]domain.Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Patient, len(s.patients))
	copy(out, s.patients)
	return out, nil
}
