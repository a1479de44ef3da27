package transfer

type LinkedInUserInfo struct {
	Sub     string `json:"sub"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

type LinkedInText struct {
	Text string `json:"text"`
}

type LinkedInMedia struct {
	Status      string       `json:"status"`
	Description LinkedInText `json:"description"`
	Media       string       `json:"media"`
	Title       LinkedInText `json:"title"`
}

type LinkedInShareContent struct {
	ShareCommentary    LinkedInText    `json:"shareCommentary"`
	ShareMediaCategory string          `json:"shareMediaCategory"`
	Media              []LinkedInMedia `json:"media,omitempty"`
}

type LinkedInSpecificContent struct {
	ShareContent LinkedInShareContent `json:"com.linkedin.ugc.ShareContent"`
}

type LinkedInVisibility struct {
	MemberNetworkVisibility string `json:"com.linkedin.ugc.MemberNetworkVisibility"`
}

type LinkedInUgcPost struct {
	Author          string                  `json:"author"`
	LifecycleState  string                  `json:"lifecycleState"`
	SpecificContent LinkedInSpecificContent `json:"specificContent"`
	Visibility      LinkedInVisibility      `json:"visibility"`
}

type LinkedInUgcPostCreated struct {
	ID string `json:"id"`
}

type LinkedInComment struct {
	Actor   string       `json:"actor"`
	Message LinkedInText `json:"message"`
}

type LinkedInServiceRelationship struct {
	RelationshipType string `json:"relationshipType"`
	Identifier       string `json:"identifier"`
}

type LinkedInRegisterUploadRequest struct {
	Recipes              []string                      `json:"recipes"`
	Owner                string                        `json:"owner"`
	ServiceRelationships []LinkedInServiceRelationship `json:"serviceRelationships"`
}

type LinkedInRegisterUpload struct {
	RegisterUploadRequest LinkedInRegisterUploadRequest `json:"registerUploadRequest"`
}

type LinkedInUploadHTTPRequest struct {
	UploadURL string `json:"uploadUrl"`
}

type LinkedInUploadMechanism struct {
	UploadHTTPRequest LinkedInUploadHTTPRequest `json:"com.linkedin.digitalmedia.uploading.MediaUploadHttpRequest"`
}

type LinkedInRegisterUploadResponse struct {
	Value struct {
		Asset           string                  `json:"asset"`
		UploadMechanism LinkedInUploadMechanism `json:"uploadMechanism"`
	} `json:"value"`
}
