package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rentdesk/rentdesk/pkg/models"
)

// --- Buildings ---

const buildingColumns = `id, company_id, name, address, city, latitude, longitude, created_at, updated_at`

func scanBuilding(row pgx.Row) (*models.Building, error) {
	var b models.Building
	err := row.Scan(&b.ID, &b.CompanyID, &b.Name, &b.Address, &b.City, &b.Latitude, &b.Longitude,
		&b.CreatedAt, &b.UpdatedAt)
	return &b, err
}

func (s *PostgresStore) CreateBuilding(ctx context.Context, b *models.Building) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO buildings (id, company_id, name, address, city, latitude, longitude, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		b.ID, b.CompanyID, b.Name, b.Address, b.City, b.Latitude, b.Longitude, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return classifyWriteError("create building", err)
	}
	return nil
}

func (s *PostgresStore) GetBuilding(ctx context.Context, id, companyID uuid.UUID) (*models.Building, error) {
	b, err := scanBuilding(s.pool.QueryRow(ctx,
		`SELECT `+buildingColumns+` FROM buildings WHERE id = $1 AND company_id = $2`, id, companyID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get building: %w", err)
	}
	return b, nil
}

func (s *PostgresStore) ListBuildings(ctx context.Context, companyID uuid.UUID, page Page) ([]*models.Building, int, error) {
	total, err := s.queryCount(ctx, "buildings", "company_id = $1", []any{companyID})
	if err != nil {
		return nil, 0, fmt.Errorf("count buildings: %w", err)
	}

	limit, offset := page.normalize()
	rows, err := s.pool.Query(ctx,
		`SELECT `+buildingColumns+` FROM buildings WHERE company_id = $1
		 ORDER BY name LIMIT $2 OFFSET $3`, companyID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list buildings: %w", err)
	}
	defer rows.Close()

	var out []*models.Building
	for rows.Next() {
		b, err := scanBuilding(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan building: %w", err)
		}
		out = append(out, b)
	}
	return out, total, rows.Err()
}

// --- Units ---

const unitColumns = `id, company_id, building_id, label, floor, area_m2, created_at, updated_at`

func scanUnit(row pgx.Row) (*models.Unit, error) {
	var u models.Unit
	err := row.Scan(&u.ID, &u.CompanyID, &u.BuildingID, &u.Label, &u.Floor, &u.AreaM2, &u.CreatedAt, &u.UpdatedAt)
	return &u, err
}

// CreateUnit inserts a unit. The building must belong to the same company.
func (s *PostgresStore) CreateUnit(ctx context.Context, u *models.Unit) error {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO units (id, company_id, building_id, label, floor, area_m2, created_at, updated_at)
		 SELECT $1::uuid, $2, b.id, $4::text, $5::int, $6::numeric, $7::timestamptz, $8::timestamptz
		 FROM buildings b WHERE b.id = $3 AND b.company_id = $2`,
		u.ID, u.CompanyID, u.BuildingID, u.Label, u.Floor, u.AreaM2, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return classifyWriteError("create unit", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidReference
	}
	return nil
}

func (s *PostgresStore) GetUnit(ctx context.Context, id, companyID uuid.UUID) (*models.Unit, error) {
	u, err := scanUnit(s.pool.QueryRow(ctx,
		`SELECT `+unitColumns+` FROM units WHERE id = $1 AND company_id = $2`, id, companyID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get unit: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) ListUnits(ctx context.Context, companyID, buildingID uuid.UUID) ([]*models.Unit, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+unitColumns+` FROM units WHERE company_id = $1 AND building_id = $2 ORDER BY label`,
		companyID, buildingID)
	if err != nil {
		return nil, fmt.Errorf("list units: %w", err)
	}
	defer rows.Close()

	var out []*models.Unit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan unit: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// --- Rooms ---

const roomColumns = `r.id, r.company_id, r.unit_id, r.name, r.area_m2, r.occupants, r.monthly_price, r.amenities,
	r.smoking_allowed, r.pets_allowed, r.couples_allowed, r.available_from, r.housemate_ages, r.housemate_tags,
	r.created_at, r.updated_at`

func roomDest(r *models.Room) []any {
	return []any{&r.ID, &r.CompanyID, &r.UnitID, &r.Name, &r.AreaM2, &r.Occupants, &r.MonthlyPrice, &r.Amenities,
		&r.SmokingAllowed, &r.PetsAllowed, &r.CouplesAllowed, &r.AvailableFrom, &r.HousemateAges, &r.HousemateTags,
		&r.CreatedAt, &r.UpdatedAt}
}

func nonNilStrings(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func nonNilInts(v []int) []int {
	if v == nil {
		return []int{}
	}
	return v
}

// CreateRoom inserts a room. The unit must belong to the same company.
func (s *PostgresStore) CreateRoom(ctx context.Context, r *models.Room) error {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO rooms (id, company_id, unit_id, name, area_m2, occupants, monthly_price, amenities,
		   smoking_allowed, pets_allowed, couples_allowed, available_from, housemate_ages, housemate_tags,
		   created_at, updated_at)
		 SELECT $1::uuid, $2, u.id, $4::text, $5::numeric, $6::int, $7::numeric, $8::text[], $9::bool, $10::bool,
		   $11::bool, $12::date, $13::int[], $14::text[], $15::timestamptz, $16::timestamptz
		 FROM units u WHERE u.id = $3 AND u.company_id = $2`,
		r.ID, r.CompanyID, r.UnitID, r.Name, r.AreaM2, r.Occupants, r.MonthlyPrice, nonNilStrings(r.Amenities),
		r.SmokingAllowed, r.PetsAllowed, r.CouplesAllowed, r.AvailableFrom, nonNilInts(r.HousemateAges),
		nonNilStrings(r.HousemateTags), r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return classifyWriteError("create room", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidReference
	}
	return nil
}

func (s *PostgresStore) GetRoom(ctx context.Context, id, companyID uuid.UUID) (*models.Room, error) {
	var r models.Room
	err := s.pool.QueryRow(ctx,
		`SELECT `+roomColumns+` FROM rooms r WHERE r.id = $1 AND r.company_id = $2`, id, companyID,
	).Scan(roomDest(&r)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get room: %w", err)
	}
	return &r, nil
}

// UpdateRoom overwrites the mutable fields of a room and refreshes updated_at.
func (s *PostgresStore) UpdateRoom(ctx context.Context, r *models.Room) error {
	err := s.pool.QueryRow(ctx,
		`UPDATE rooms SET name = $3, area_m2 = $4, occupants = $5, monthly_price = $6, amenities = $7,
		   smoking_allowed = $8, pets_allowed = $9, couples_allowed = $10, available_from = $11,
		   housemate_ages = $12, housemate_tags = $13, updated_at = NOW()
		 WHERE id = $1 AND company_id = $2
		 RETURNING updated_at`,
		r.ID, r.CompanyID, r.Name, r.AreaM2, r.Occupants, r.MonthlyPrice, nonNilStrings(r.Amenities),
		r.SmokingAllowed, r.PetsAllowed, r.CouplesAllowed, r.AvailableFrom, nonNilInts(r.HousemateAges),
		nonNilStrings(r.HousemateTags),
	).Scan(&r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return classifyWriteError("update room", err)
	}
	return nil
}

func (s *PostgresStore) ListRoomsByUnit(ctx context.Context, companyID, unitID uuid.UUID) ([]*models.Room, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+roomColumns+` FROM rooms r WHERE r.company_id = $1 AND r.unit_id = $2 ORDER BY r.name`,
		companyID, unitID)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()

	var out []*models.Room
	for rows.Next() {
		var r models.Room
		if err := rows.Scan(roomDest(&r)...); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// ListRoomListings returns rooms joined with their building location, the
// candidate set for coliving matching.
func (s *PostgresStore) ListRoomListings(ctx context.Context, filter RoomFilter) ([]*models.RoomListing, error) {
	conditions := []string{"r.company_id = $1"}
	args := []any{filter.CompanyID}
	argIdx := 2

	if filter.City != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(b.city) = LOWER($%d)", argIdx))
		args = append(args, filter.City)
		argIdx++
	}
	if filter.AvailableBy != nil {
		conditions = append(conditions, fmt.Sprintf("(r.available_from IS NULL OR r.available_from <= $%d)", argIdx))
		args = append(args, *filter.AvailableBy)
		argIdx++
	}
	if filter.MaxPrice > 0 {
		conditions = append(conditions, fmt.Sprintf("r.monthly_price <= $%d", argIdx))
		args = append(args, filter.MaxPrice)
	}
	if filter.OnlyUnoccupied {
		conditions = append(conditions, "r.occupants = 0")
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+roomColumns+`, b.city, b.latitude, b.longitude
		 FROM rooms r
		 JOIN units u ON u.id = r.unit_id
		 JOIN buildings b ON b.id = u.building_id
		 WHERE `+strings.Join(conditions, " AND ")+`
		 ORDER BY r.id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list room listings: %w", err)
	}
	defer rows.Close()

	var out []*models.RoomListing
	for rows.Next() {
		var l models.RoomListing
		dest := append(roomDest(&l.Room), &l.City, &l.Latitude, &l.Longitude)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan room listing: %w", err)
		}
		out = append(out, &l)
	}
	return out, rows.Err()
}

// --- Seeker profiles ---

const seekerColumns = `id, company_id, full_name, email, budget_min, budget_max, move_in, city, latitude, longitude,
	max_distance_km, desired_amenities, smoker, has_pets, is_couple, age, lifestyle_tags, created_at, updated_at`

func scanSeeker(row pgx.Row) (*models.SeekerProfile, error) {
	var p models.SeekerProfile
	err := row.Scan(&p.ID, &p.CompanyID, &p.FullName, &p.Email, &p.BudgetMin, &p.BudgetMax, &p.MoveIn,
		&p.City, &p.Latitude, &p.Longitude, &p.MaxDistanceKm, &p.DesiredAmenities, &p.Smoker, &p.HasPets,
		&p.IsCouple, &p.Age, &p.LifestyleTags, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (s *PostgresStore) CreateSeekerProfile(ctx context.Context, p *models.SeekerProfile) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO seeker_profiles (`+seekerColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		p.ID, p.CompanyID, p.FullName, p.Email, p.BudgetMin, p.BudgetMax, p.MoveIn, p.City, p.Latitude,
		p.Longitude, p.MaxDistanceKm, nonNilStrings(p.DesiredAmenities), p.Smoker, p.HasPets, p.IsCouple,
		p.Age, nonNilStrings(p.LifestyleTags), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return classifyWriteError("create seeker profile", err)
	}
	return nil
}

func (s *PostgresStore) GetSeekerProfile(ctx context.Context, id, companyID uuid.UUID) (*models.SeekerProfile, error) {
	p, err := scanSeeker(s.pool.QueryRow(ctx,
		`SELECT `+seekerColumns+` FROM seeker_profiles WHERE id = $1 AND company_id = $2`, id, companyID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get seeker profile: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) ListSeekerProfiles(ctx context.Context, companyID uuid.UUID, page Page) ([]*models.SeekerProfile, int, error) {
	total, err := s.queryCount(ctx, "seeker_profiles", "company_id = $1", []any{companyID})
	if err != nil {
		return nil, 0, fmt.Errorf("count seeker profiles: %w", err)
	}

	limit, offset := page.normalize()
	rows, err := s.pool.Query(ctx,
		`SELECT `+seekerColumns+` FROM seeker_profiles WHERE company_id = $1
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, companyID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list seeker profiles: %w", err)
	}
	defer rows.Close()

	var out []*models.SeekerProfile
	for rows.Next() {
		p, err := scanSeeker(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan seeker profile: %w", err)
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}
