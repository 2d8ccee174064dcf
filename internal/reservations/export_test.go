package reservations

// SetCodeGenerator replaces the reservation code source.
func (s *Service) SetCodeGenerator(fn func() string) { s.newCode = fn }

// ExpireBatchSize is the number of reservations locked per sweep batch.
const ExpireBatchSize = expireBatchSize
