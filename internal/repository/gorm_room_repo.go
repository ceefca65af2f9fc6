package repository

import (
	"context"
	"errors"
	"sort"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/weiawesome/wes-io-live/membership-service/internal/domain"
	"github.com/weiawesome/wes-io-live/membership-service/pkg/log"
)

// GormRoomRepository implements RoomRepository using GORM.
type GormRoomRepository struct {
	db *gorm.DB
}

var _ RoomRepository = (*GormRoomRepository)(nil)

// NewGormRoomRepository creates a new GORM-based room repository.
func NewGormRoomRepository(db *gorm.DB) *GormRoomRepository {
	return &GormRoomRepository{db: db}
}

// Transaction runs fn inside a database transaction. Nested calls use savepoints.
func (r *GormRoomRepository) Transaction(ctx context.Context, fn func(RoomRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormRoomRepository{db: tx})
	})
}

// Create inserts a room. room.ID must already be set.
func (r *GormRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	l := log.Ctx(ctx)

	model := domain.RoomToModel(room)
	result := r.db.WithContext(ctx).Create(model)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return ErrRoomExists
		}
		l.Error().Err(result.Error).Str(log.FieldRoomID, room.ID).Msg("failed to create room in db")
		return result.Error
	}

	// Update the domain object with generated timestamps
	room.CreatedAt = model.CreatedAt
	room.UpdatedAt = model.UpdatedAt
	l.Debug().Str(log.FieldRoomID, room.ID).Msg("room created in db")
	return nil
}

// GetByID retrieves a room by ID.
func (r *GormRoomRepository) GetByID(ctx context.Context, id string) (*domain.Room, error) {
	l := log.Ctx(ctx)

	var model domain.RoomModel
	result := r.db.WithContext(ctx).First(&model, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		l.Error().Err(result.Error).Str(log.FieldRoomID, id).Msg("failed to get room by id")
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

type memberRow struct {
	ID       uint64
	Name     string
	Username string
	Avatar   *string
	Admin    bool
}

func (row memberRow) summary() domain.UserSummary {
	u := domain.UserModel{ID: row.ID, Name: row.Name, Username: row.Username, Avatar: row.Avatar}
	return u.ToSummary()
}

// GetDetail retrieves a room with its roster and pending requesters.
func (r *GormRoomRepository) GetDetail(ctx context.Context, id string) (*domain.RoomDetail, error) {
	l := log.Ctx(ctx)

	room, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var members []memberRow
	if err := r.db.WithContext(ctx).
		Table("room_user").
		Select("users.id, users.name, users.username, users.avatar, room_user.admin").
		Joins("JOIN users ON users.id = room_user.user_id").
		Where("room_user.room_id = ?", id).
		Order("room_user.created_at ASC, users.id ASC").
		Scan(&members).Error; err != nil {
		l.Error().Err(err).Str(log.FieldRoomID, id).Msg("failed to load room members")
		return nil, err
	}

	var requests []memberRow
	if err := r.db.WithContext(ctx).
		Table("room_user_requests").
		Select("users.id, users.name, users.username, users.avatar").
		Joins("JOIN users ON users.id = room_user_requests.user_id").
		Where("room_user_requests.room_id = ?", id).
		Order("room_user_requests.created_at ASC, users.id ASC").
		Scan(&requests).Error; err != nil {
		l.Error().Err(err).Str(log.FieldRoomID, id).Msg("failed to load room requests")
		return nil, err
	}

	detail := &domain.RoomDetail{
		Room:     *room,
		Members:  make([]domain.Member, len(members)),
		Requests: make([]domain.UserSummary, len(requests)),
	}
	for i, m := range members {
		detail.Members[i] = domain.Member{UserSummary: m.summary(), Role: domain.RoleFor(m.Admin)}
	}
	for i, q := range requests {
		detail.Requests[i] = q.summary()
	}
	return detail, nil
}

// Update writes the room's mutable fields.
func (r *GormRoomRepository) Update(ctx context.Context, room *domain.Room) error {
	l := log.Ctx(ctx)

	model := domain.RoomToModel(room)
	now := time.Now()
	result := r.db.WithContext(ctx).Model(&domain.RoomModel{}).
		Where("id = ?", room.ID).
		Updates(map[string]interface{}{
			"name":       model.Name,
			"avatar":     model.Avatar,
			"updated_at": now,
		})
	if result.Error != nil {
		l.Error().Err(result.Error).Str(log.FieldRoomID, room.ID).Msg("failed to update room in db")
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRoomNotFound
	}
	room.UpdatedAt = now
	return nil
}

// Delete removes the room and its edges in one transaction. Edges are removed
// explicitly so the result does not depend on the driver enforcing cascades.
func (r *GormRoomRepository) Delete(ctx context.Context, id string) error {
	l := log.Ctx(ctx)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("room_id = ?", id).Delete(&domain.MembershipModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("room_id = ?", id).Delete(&domain.RequestModel{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&domain.RoomModel{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrRoomNotFound
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrRoomNotFound) {
			l.Error().Err(err).Str(log.FieldRoomID, id).Msg("failed to delete room in db")
		}
		return err
	}
	l.Debug().Str(log.FieldRoomID, id).Msg("room deleted in db")
	return nil
}

// RoomsForUser retrieves the rooms userID is a member of.
func (r *GormRoomRepository) RoomsForUser(ctx context.Context, userID uint64) ([]domain.Room, error) {
	return r.roomsVia(ctx, &domain.MembershipModel{}, userID)
}

// RequestsForUser retrieves the rooms userID asked to join.
func (r *GormRoomRepository) RequestsForUser(ctx context.Context, userID uint64) ([]domain.Room, error) {
	return r.roomsVia(ctx, &domain.RequestModel{}, userID)
}

func (r *GormRoomRepository) roomsVia(ctx context.Context, edge interface{}, userID uint64) ([]domain.Room, error) {
	l := log.Ctx(ctx)

	db := r.db.WithContext(ctx)
	sub := db.Session(&gorm.Session{NewDB: true}).Model(edge).Select("room_id").Where("user_id = ?", userID)

	var models []domain.RoomModel
	if err := db.Where("id IN (?)", sub).Order("created_at ASC, id ASC").Find(&models).Error; err != nil {
		l.Error().Err(err).Uint64(log.FieldUserID, userID).Msg("failed to get user rooms from db")
		return nil, err
	}

	rooms := make([]domain.Room, len(models))
	for i, model := range models {
		rooms[i] = *model.ToDomain()
	}
	return rooms, nil
}

// GetMembership returns ErrMembershipNotFound when userID is not in the room,
// including when the room itself does not exist.
func (r *GormRoomRepository) GetMembership(ctx context.Context, roomID string, userID uint64) (*domain.Membership, error) {
	var model domain.MembershipModel
	result := r.db.WithContext(ctx).
		Omit(clause.Associations).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Take(&model)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrMembershipNotFound
		}
		return nil, result.Error
	}
	ms := model.ToDomain()
	return &ms, nil
}

func (r *GormRoomRepository) CountMembers(ctx context.Context, roomID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&domain.MembershipModel{}).Where("room_id = ?", roomID).Count(&n).Error
	return n, err
}

func (r *GormRoomRepository) AttachMembers(ctx context.Context, roomID string, members map[uint64]domain.Role) error {
	if len(members) == 0 {
		return nil
	}

	models := make([]domain.MembershipModel, 0, len(members))
	for _, id := range sortedKeys(members) {
		models = append(models, *domain.MembershipToModel(domain.Membership{RoomID: roomID, UserID: id, Role: members[id]}))
	}

	return r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "room_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"admin"}),
		}).
		Create(&models).Error
}

func (r *GormRoomRepository) SyncMembers(ctx context.Context, roomID string, members map[uint64]domain.Role) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Where("room_id = ?", roomID)
		if len(members) > 0 {
			q = q.Where("user_id NOT IN ?", sortedKeys(members))
		}
		if err := q.Delete(&domain.MembershipModel{}).Error; err != nil {
			return err
		}
		return (&GormRoomRepository{db: tx}).AttachMembers(ctx, roomID, members)
	})
}

func (r *GormRoomRepository) DetachMembers(ctx context.Context, roomID string, userIDs []uint64) error {
	if len(userIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Where("room_id = ? AND user_id IN ?", roomID, userIDs).
		Delete(&domain.MembershipModel{}).Error
}

func (r *GormRoomRepository) HasRequest(ctx context.Context, roomID string, userID uint64) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&domain.RequestModel{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Count(&n).Error
	return n > 0, err
}

func (r *GormRoomRepository) AttachRequests(ctx context.Context, roomID string, userIDs []uint64) error {
	if len(userIDs) == 0 {
		return nil
	}

	models := make([]domain.RequestModel, len(userIDs))
	for i, id := range userIDs {
		models[i] = domain.RequestModel{RoomID: roomID, UserID: id}
	}

	return r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models).Error
}

func (r *GormRoomRepository) DetachRequests(ctx context.Context, roomID string, userIDs []uint64) error {
	if len(userIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Where("room_id = ? AND user_id IN ?", roomID, userIDs).
		Delete(&domain.RequestModel{}).Error
}

func sortedKeys(m map[uint64]domain.Role) []uint64 {
	keys := make([]uint64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
