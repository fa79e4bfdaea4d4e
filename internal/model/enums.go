package model

type MovementType string

const (
	MovementIn  MovementType = "IN"
	MovementOut MovementType = "OUT"
)

func (t MovementType) Valid() bool { return t == MovementIn || t == MovementOut }

// MovementSource records which path wrote a movement.
type MovementSource string

const (
	SourceGenesis    MovementSource = "GENESIS"
	SourceManual     MovementSource = "MANUAL"
	SourceOrder      MovementSource = "ORDER"
	SourceRecordOnly MovementSource = "RECORD_ONLY"
)

type PayMethod string

const (
	PayCash     PayMethod = "CASH"
	PayTransfer PayMethod = "TRANSFER"
)

func (p PayMethod) Valid() bool { return p == PayCash || p == PayTransfer }

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
)

func (s Status) Valid() bool { return s == StatusPending || s == StatusConfirmed }

type ReservationStatus string

const (
	ReservationReserved ReservationStatus = "RESERVED"
	ReservationConsumed ReservationStatus = "CONSUMED"
	ReservationReleased ReservationStatus = "RELEASED"
)
