package kernel

type UserID string

func NewUserID(id string) UserID { return UserID(id) }
func (u UserID) String() string  { return string(u) }
func (u UserID) IsEmpty() bool   { return string(u) == "" }

type TenantID string

func NewTenantID(id string) TenantID { return TenantID(id) }
func (t TenantID) String() string    { return string(t) }
func (t TenantID) IsEmpty() bool     { return string(t) == "" }

// AppID identifies a registered gateway application (a consumer of the
// credential-gated API, distinct from the end-users it signs in).
type AppID string

func NewAppID(id string) AppID { return AppID(id) }
func (a AppID) String() string { return string(a) }
func (a AppID) IsEmpty() bool  { return string(a) == "" }
