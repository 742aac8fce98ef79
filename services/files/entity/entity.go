package entity

const MaxUploadSize = 10 << 20

type UploadRequest struct {
	ActivityID  string
	Name        string
	ContentType string
	Data        []byte
}

type UploadResponse struct {
	ID           string `json:"id"`
	URL          string `json:"url"`
	FileName     string `json:"fileName"`
	OriginalName string `json:"originalName"`
	Size         int    `json:"size"`
	Type         string `json:"type"`
	UploadedBy   string `json:"uploadedBy"`
	Success      bool   `json:"success"`
}
