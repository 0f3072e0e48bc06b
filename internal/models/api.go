package models

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id,omitempty"`
}

// ChatResponse is the reply to a chat request.
type ChatResponse struct {
	Response string `json:"response"`
}

// UploadResponse is the reply to a successful file upload.
type UploadResponse struct {
	SessionID      string   `json:"session_id"`
	FilePath       string   `json:"file_path"`
	FileName       string   `json:"file_name"`
	FilesInSession []string `json:"files_in_session"`
}

// SessionFilesResponse lists the uploaded files of a session.
type SessionFilesResponse struct {
	Files []string `json:"files"`
}
