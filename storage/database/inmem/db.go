package inmemdb

import (
	"sync"

	"github.com/trezcool/hostelmess/core/mess"
	"github.com/trezcool/hostelmess/core/user"
)

type (
	// DB is a process-local datastore, used in development & tests.
	DB struct {
		user *userTable
		mess *messTables
	}

	userTable struct {
		mutex sync.RWMutex
		table map[string]*user.User
	}

	prefKey struct {
		userID string
		date   string
	}

	attendanceKey struct {
		userID string
		date   string
		meal   mess.MealType
	}

	messTables struct {
		mutex         sync.RWMutex
		preferences   map[prefKey]mess.MealPreference
		attendance    map[attendanceKey]mess.AttendanceRecord
		leave         map[string]*mess.LeaveRequest
		notifications map[string]*mess.Notification
	}
)

func Open() *DB {
	return &DB{
		user: &userTable{table: make(map[string]*user.User)},
		mess: &messTables{
			preferences:   make(map[prefKey]mess.MealPreference),
			attendance:    make(map[attendanceKey]mess.AttendanceRecord),
			leave:         make(map[string]*mess.LeaveRequest),
			notifications: make(map[string]*mess.Notification),
		},
	}
}
