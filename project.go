package blockhub

import (
	"context"
	"time"
)

const anonymousOwnerPrefix = reservedPrefix + "anon:"

type ProjectID string

// ProjectRepository is the Project Store. Implementations must make
// TransferOwnership a single conditional write.
type ProjectRepository interface {
	Store(ctx context.Context, p *Project) error
	FindByID(ctx context.Context, id ProjectID) (*Project, error)
	NamesByOwner(ctx context.Context, owner string) ([]string, error)
	// TransferOwnership sets owner and name only while the project is still
	// owned by from. It reports whether the project was transferred.
	TransferOwnership(ctx context.Context, id ProjectID, from, to, name string) (bool, error)
	DeleteByOwner(ctx context.Context, owner string) (int64, error)
}

type Project struct {
	ID        ProjectID `bson:"_id"`
	Owner     string    `bson:"owner"`
	Name      string    `bson:"name"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

// AnonymousOwner is the owner recorded on projects created by a session that
// has not logged in yet.
func AnonymousOwner(clientID string) string {
	return anonymousOwnerPrefix + clientID
}

func NewProject(owner, name string) *Project {
	return &Project{ID: ProjectID(nextID()), Owner: owner, Name: name, UpdatedAt: time.Now().UTC()}
}
