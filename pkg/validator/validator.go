package validator

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode"
)

type ValidationErrors map[string]string

func (v ValidationErrors) HasErrors() bool {
	return len(v) > 0
}

func (v ValidationErrors) Add(field, message string) {
	v[field] = message
}

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

func ValidateRegister(email, username, displayName, password string) ValidationErrors {
	errs := make(ValidationErrors)

	// Email
	email = strings.TrimSpace(email)
	if email == "" {
		errs.Add("email", "Email is required")
	} else if _, err := mail.ParseAddress(email); err != nil {
		errs.Add("email", "Invalid email address")
	}

	// Username
	username = strings.TrimSpace(username)
	if username == "" {
		errs.Add("username", "Username is required")
	} else if len(username) < 3 {
		errs.Add("username", "Username must be at least 3 characters")
	} else if len(username) > 50 {
		errs.Add("username", "Username is too long")
	} else if !usernameRegex.MatchString(username) {
		errs.Add("username", "Username can only contain letters, numbers, _ and -")
	}

	// Display name
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		errs.Add("display_name", "Display name is required")
	} else if len(displayName) < 2 {
		errs.Add("display_name", "Display name must be at least 2 characters")
	} else if len(displayName) > 100 {
		errs.Add("display_name", "Display name is too long")
	}

	// Password
	validatePassword(password, errs)

	return errs
}

func ValidateLogin(email, password string) ValidationErrors {
	errs := make(ValidationErrors)

	email = strings.TrimSpace(email)
	if email == "" {
		errs.Add("email", "Email is required")
	} else if _, err := mail.ParseAddress(email); err != nil {
		errs.Add("email", "Invalid email address")
	}

	if password == "" {
		errs.Add("password", "Password is required")
	}

	return errs
}

const MaxMessageLength = 4000

// ValidateMessage checks a direct message body before any store call.
func ValidateMessage(text string) ValidationErrors {
	errs := make(ValidationErrors)

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		errs.Add("text", "Message cannot be empty")
	} else if len(text) > MaxMessageLength {
		errs.Add("text", "Message is too long")
	}

	return errs
}

func ValidateProfile(name, displayName string, photoURL *string, images *ImagePolicy) ValidationErrors {
	errs := make(ValidationErrors)

	if len(strings.TrimSpace(name)) > 100 {
		errs.Add("name", "Name is too long")
	}
	if len(strings.TrimSpace(displayName)) > 100 {
		errs.Add("display_name", "Display name is too long")
	}
	if photoURL != nil && *photoURL != "" {
		if err := images.Validate(*photoURL); err != nil {
			errs.Add("photo_url", err.Error())
		}
	}

	return errs
}

func ValidateProduct(name, description, category, imageURL string, price float64, images *ImagePolicy) ValidationErrors {
	errs := make(ValidationErrors)

	if strings.TrimSpace(name) == "" {
		errs.Add("name", "Name is required")
	} else if len(name) > 200 {
		errs.Add("name", "Name is too long")
	}
	if strings.TrimSpace(description) == "" {
		errs.Add("description", "Description is required")
	}
	if strings.TrimSpace(category) == "" {
		errs.Add("category", "Category is required")
	}
	if price <= 0 {
		errs.Add("price", "Price must be greater than zero")
	}
	if strings.TrimSpace(imageURL) == "" {
		errs.Add("imageUrl", "Image URL is required")
	} else if err := images.Validate(imageURL); err != nil {
		errs.Add("imageUrl", err.Error())
	}

	return errs
}

func ValidateReview(userName string, rating int, comment string, photos []string, images *ImagePolicy) ValidationErrors {
	errs := make(ValidationErrors)

	if strings.TrimSpace(userName) == "" {
		errs.Add("userName", "Name is required")
	}
	if rating < 1 || rating > 5 {
		errs.Add("rating", "Rating must be between 1 and 5")
	}
	if strings.TrimSpace(comment) == "" {
		errs.Add("comment", "Comment is required")
	}
	for _, photo := range photos {
		if err := images.Validate(photo); err != nil {
			errs.Add("photos", fmt.Sprintf("Invalid photo %q: %v", photo, err))
			break
		}
	}

	return errs
}

func validatePassword(password string, errs ValidationErrors) {
	if len(password) < 8 {
		errs.Add("password", "Password must be at least 8 characters")
		return
	}

	var hasUpper, hasLower, hasDigit bool
	for _, ch := range password {
		switch {
		case unicode.IsUpper(ch):
			hasUpper = true
		case unicode.IsLower(ch):
			hasLower = true
		case unicode.IsDigit(ch):
			hasDigit = true
		}
	}

	missing := []string{}
	if !hasUpper {
		missing = append(missing, "one uppercase letter")
	}
	if !hasLower {
		missing = append(missing, "one lowercase letter")
	}
	if !hasDigit {
		missing = append(missing, "one number")
	}

	if len(missing) > 0 {
		errs.Add("password", fmt.Sprintf("Password must contain at least %s", strings.Join(missing, ", ")))
	}
}
