package models

// Teacher is the course instructor as exposed publicly.
type Teacher struct {
	ID        int     `json:"id"`
	Name      string  `json:"name"`
	AvatarURL *string `json:"avatarUrl,omitempty"`
}

// Lesson is a single unit of course content. EmbedURL is filled by the
// gateway when ContentURL is a recognized video host (e.g. YouTube).
type Lesson struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	ContentType string  `json:"contentType"`
	ContentURL  *string `json:"contentUrl"`
	ContentText *string `json:"contentText"`
	Duration    *int    `json:"duration"`
	SortOrder   int     `json:"sortOrder"`
	EmbedURL    string  `json:"embedUrl,omitempty"`
}

// Section groups lessons within a course.
type Section struct {
	ID            int      `json:"id"`
	Title         string   `json:"title"`
	SortOrder     int      `json:"sortOrder"`
	VideoURL      *string  `json:"videoUrl"`
	AttachmentURL *string  `json:"attachmentUrl"`
	Lessons       []Lesson `json:"lessons"`
}

// Course is the public course record. SalePrice, when set, is the effective
// price.
type Course struct {
	ID              int       `json:"id"`
	Title           string    `json:"title"`
	Slug            string    `json:"slug"`
	Summary         *string   `json:"summary,omitempty"`
	Description     *string   `json:"description,omitempty"`
	Price           float64   `json:"price"`
	SalePrice       *float64  `json:"salePrice,omitempty"`
	CoverImage      *string   `json:"coverImage,omitempty"`
	PreviewVideoURL *string   `json:"previewVideoUrl,omitempty"`
	Teacher         *Teacher  `json:"teacher,omitempty"`
	Sections        []Section `json:"sections,omitempty"`
}

// EffectivePrice returns salePrice when present, else price.
func (c *Course) EffectivePrice() float64 {
	if c.SalePrice != nil {
		return *c.SalePrice
	}
	return c.Price
}

// ListMeta is pagination metadata for course lists.
type ListMeta struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalItems int `json:"totalItems"`
	TotalPages int `json:"totalPages"`
}

// CourseList is a paginated course listing.
type CourseList struct {
	Items []Course  `json:"data"`
	Meta  *ListMeta `json:"meta,omitempty"`
}

// Enrollment is one entry of the learning dashboard.
type Enrollment struct {
	CourseID           int     `json:"courseId"`
	CourseTitle        string  `json:"courseTitle"`
	CourseCover        *string `json:"courseCover"`
	ProgressPercentage float64 `json:"progressPercentage"`
	LastAccessedAt     *string `json:"lastAccessedAt"`
}

// Progress summarizes lesson completion for an enrolled course.
type Progress struct {
	CompletedLessons int     `json:"completedLessons"`
	TotalLessons     int     `json:"totalLessons"`
	Percentage       float64 `json:"percentage"`
}

// CourseProgress is the learning-player payload: course content plus the
// caller's progress.
type CourseProgress struct {
	Course   Course   `json:"course"`
	Progress Progress `json:"progress"`
}
