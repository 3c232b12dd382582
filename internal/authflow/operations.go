package authflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/pocketshop-app/identity/internal/identity"
)

// Local validation messages. These are produced without contacting the
// backend and are distinct from the backend error vocabulary.
const (
	msgMissingCredentials   = "Please enter both email and password."
	msgMissingFields        = "Please fill in all fields."
	msgPasswordMismatch     = "Passwords do not match. Please try again."
	msgPasswordTooShort     = "Password must be at least 6 characters long."
	msgNewPasswordMismatch  = "New passwords do not match. Please try again."
	msgNewPasswordTooShort  = "New password must be at least 6 characters long."
	msgMissingResetEmail    = "Please enter your email address."
	msgInvalidEmailFormat   = "Please enter a valid email address."
	msgInvalidName          = "Please enter a valid name."
	msgSameEmail            = "This is already your email address."
	msgPasswordRequired     = "Password is required to delete your account."
	msgNoUserLoggedIn       = "No user logged in"
	msgNoUserFound          = "No user found"
	msgVerificationRequired = "Email verification required. Please verify your email address before signing in."

	msgSignupNameFailed         = "Account created but failed to set display name."
	msgSignupVerificationFailed = "Account created but failed to send verification email."
	msgSignupSuccess            = "Account created successfully. Please check your inbox and verify your email before signing in."
	msgVerificationSent         = "Verification email sent successfully."
	msgDisplayNameUpdated       = "Display name updated successfully!"
	msgPasswordUpdated          = "Your password has been updated successfully!"
	msgAccountDeleted           = "Your account has been permanently deleted."

	msgPendingChangeConflict = "You may already have a pending email change request. Please check your email inbox for any pending verification links, or wait a few minutes before trying again."
)

const minPasswordLen = 6

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

var errNoUser = errors.New("authflow: no current user")

// Login verifies credentials and establishes a session. An identity whose
// email is unverified is signed out again and reported with
// needsVerification so the caller can offer a verification resend; the
// identity is still returned for that purpose.
func (c *Coordinator) Login(ctx context.Context, email, password string) Result {
	if email == "" || password == "" {
		return failure(msgMissingCredentials)
	}

	id, err := c.backend.SignIn(ctx, email, password)
	if err != nil {
		return failure(c.messageFor(err))
	}

	if !id.EmailVerified {
		if err := c.backend.SignOut(ctx); err != nil {
			c.logger.Warn("sign out unverified user", slog.Any("error", err))
		}
		c.replace(func(s *Session) {
			s.PendingVerificationEmail = ""
		})
		return Result{
			Success: false,
			Error:   msgVerificationRequired,
			Data:    &Data{NeedsVerification: true, User: id.Clone()},
		}
	}

	// The subscription callback installs the identity; only the
	// verification marker is cleared here.
	c.replace(func(s *Session) {
		s.PendingVerificationEmail = ""
	})
	return success(&Data{User: id.Clone()})
}

// Signup creates a credential, sets the display name, sends the
// verification email and signs the new account out until it is verified.
// Failures after the credential was created are reported distinctly so the
// caller knows the account exists despite the secondary failure.
func (c *Coordinator) Signup(ctx context.Context, email, password, confirmPassword, displayName string) Result {
	name := strings.TrimSpace(displayName)
	if email == "" || password == "" || confirmPassword == "" || name == "" {
		return failure(msgMissingFields)
	}
	if password != confirmPassword {
		return failure(msgPasswordMismatch)
	}
	if len(password) < minPasswordLen {
		return failure(msgPasswordTooShort)
	}

	id, err := c.backend.SignUp(ctx, email, password)
	if err != nil {
		return failure(c.messageFor(err))
	}

	if err := c.backend.UpdateDisplayName(ctx, name); err != nil {
		c.logger.Warn("set display name after signup", slog.Any("error", err))
		return failure(msgSignupNameFailed)
	}

	if _, err := c.backend.Reload(ctx); err != nil {
		c.logger.Warn("reload after signup", slog.Any("error", err))
	}

	if err := c.backend.SendVerificationEmail(ctx); err != nil {
		c.logger.Warn("send verification email after signup", slog.Any("error", err))
		return failure(msgSignupVerificationFailed)
	}

	if err := c.backend.SignOut(ctx); err != nil {
		c.logger.Warn("sign out after signup", slog.Any("error", err))
	}

	c.replace(func(s *Session) {
		s.PendingVerificationEmail = id.Email
	})
	return success(&Data{Message: msgSignupSuccess, NeedsVerification: true})
}

// Logout signs the current principal out. Calling it while already
// unauthenticated is a no-op.
func (c *Coordinator) Logout(ctx context.Context) Result {
	if err := c.backend.SignOut(ctx); err != nil {
		return failure(c.messageFor(err))
	}
	c.replace(func(s *Session) {
		s.PendingVerificationEmail = ""
	})
	return success(nil)
}

// SendVerificationEmail re-sends the verification link to the current
// principal's address.
func (c *Coordinator) SendVerificationEmail(ctx context.Context) Result {
	if c.Session().Identity == nil {
		return failure(msgNoUserLoggedIn)
	}
	if err := c.backend.SendVerificationEmail(ctx); err != nil {
		return failure(c.messageFor(err))
	}
	return success(&Data{Message: msgVerificationSent})
}

// ResetPassword requests a password-reset email for the given address.
func (c *Coordinator) ResetPassword(ctx context.Context, email string) Result {
	if email == "" {
		return failure(msgMissingResetEmail)
	}
	if !emailPattern.MatchString(email) {
		return failure(msgInvalidEmailFormat)
	}

	if err := c.backend.SendPasswordResetEmail(ctx, email); err != nil {
		return failure(c.messageFor(err))
	}

	return success(&Data{
		Message: fmt.Sprintf("A password reset link has been sent to %s. Please check your inbox and click the link to reset your password.", email),
	})
}

// RefreshUserData reloads the identity from the backend. When a pending
// email change is observed confirmed (the reloaded email now matches it),
// the marker is cleared and the result carries EmailUpdated.
func (c *Coordinator) RefreshUserData(ctx context.Context) Result {
	snap := c.Session()
	if snap.Identity == nil {
		return failure(msgNoUserLoggedIn)
	}

	id, err := c.backend.Reload(ctx)
	if err != nil {
		return failure(c.messageFor(err))
	}

	if id != nil && snap.PendingEmailChange != "" && strings.EqualFold(id.Email, snap.PendingEmailChange) {
		if _, applied := c.replaceIfCurrent(snap.Version, func(s *Session) {
			s.Identity = id.Clone()
			s.PendingEmailChange = ""
		}); !applied {
			// A subscription callback advanced the session during the
			// reload; it owns the reconciliation. Report from the state it
			// produced.
			if c.Session().PendingEmailChange != "" {
				return success(nil)
			}
		}
		return success(&Data{EmailUpdated: true})
	}

	if id != nil && id.EmailVerified {
		c.replaceIfCurrent(snap.Version, func(s *Session) {
			s.Identity = id.Clone()
		})
	}
	return success(nil)
}

// UpdateDisplayName sets a new display name and replaces the session
// identity so downstream observers re-render.
func (c *Coordinator) UpdateDisplayName(ctx context.Context, name string) Result {
	trimmed := strings.TrimSpace(name)
	if c.Session().Identity == nil || trimmed == "" {
		return failure(msgInvalidName)
	}

	if err := c.backend.UpdateDisplayName(ctx, trimmed); err != nil {
		return failure(c.messageFor(err))
	}

	c.replace(func(s *Session) {
		if s.Identity != nil {
			dup := *s.Identity
			dup.DisplayName = trimmed
			s.Identity = &dup
		}
	})
	return success(&Data{Message: msgDisplayNameUpdated})
}

// ChangeEmail requests a verified email change after re-proving the current
// credentials. The account keeps its current email until the link sent to
// the new address is followed; the coordinator tracks the proposal in
// Session.PendingEmailChange meanwhile.
func (c *Coordinator) ChangeEmail(ctx context.Context, newEmail, currentPassword string) Result {
	sess := c.Session()
	if sess.Identity == nil || newEmail == "" || currentPassword == "" {
		return failure(msgMissingFields)
	}
	if !emailPattern.MatchString(newEmail) {
		return failure(msgInvalidEmailFormat)
	}
	if strings.EqualFold(newEmail, sess.Identity.Email) {
		return failure(msgSameEmail)
	}

	if err := c.reauthenticate(ctx, currentPassword); err != nil {
		switch identity.CodeOf(err) {
		case identity.CodeWrongPassword, identity.CodeInvalidCredential:
			return failure(fmt.Sprintf(
				"The password you entered is incorrect. Please make sure you're using the password for your current email address (%s).",
				sess.Identity.Email,
			))
		}
		return c.reauthFailure(err)
	}

	if err := c.backend.RequestEmailChange(ctx, newEmail); err != nil {
		if identity.CodeOf(err) == identity.CodeOperationNotAllowed {
			return failure(msgPendingChangeConflict)
		}
		return failure(c.messageFor(err))
	}

	c.SetPendingEmailChange(newEmail)

	return success(&Data{
		Message: fmt.Sprintf(
			"A verification email has been sent to %s.\n\nPlease check your inbox and click the verification link to complete the email change.\n\nYou can continue using your current email until the change is verified.",
			newEmail,
		),
		PendingEmail: newEmail,
	})
}

// ChangePassword replaces the password after re-proving the current one.
func (c *Coordinator) ChangePassword(ctx context.Context, newPassword, confirmNewPassword, currentPassword string) Result {
	if c.Session().Identity == nil || newPassword == "" || confirmNewPassword == "" || currentPassword == "" {
		return failure(msgMissingFields)
	}
	if newPassword != confirmNewPassword {
		return failure(msgNewPasswordMismatch)
	}
	if len(newPassword) < minPasswordLen {
		return failure(msgNewPasswordTooShort)
	}

	if err := c.reauthenticate(ctx, currentPassword); err != nil {
		return c.reauthFailure(err)
	}

	if err := c.backend.UpdatePassword(ctx, newPassword); err != nil {
		return failure(c.messageFor(err))
	}
	return success(&Data{Message: msgPasswordUpdated})
}

// DeleteAccount permanently removes the current principal after re-proving
// credentials.
func (c *Coordinator) DeleteAccount(ctx context.Context, password string) Result {
	if password == "" || c.Session().Identity == nil {
		return failure(msgPasswordRequired)
	}

	if err := c.reauthenticate(ctx, password); err != nil {
		return c.reauthFailure(err)
	}

	if err := c.backend.DeleteIdentity(ctx); err != nil {
		return failure(c.messageFor(err))
	}

	c.replace(func(s *Session) {
		s.PendingEmailChange = ""
		s.PendingVerificationEmail = ""
	})
	return success(&Data{Message: msgAccountDeleted})
}

// reauthenticate re-proves the current credentials with the stored email and
// a freshly supplied password. Sensitive mutations call this first because
// the backend enforces a recent login; its failure short-circuits them.
func (c *Coordinator) reauthenticate(ctx context.Context, password string) error {
	sess := c.Session()
	if sess.Identity == nil || sess.Identity.Email == "" {
		return errNoUser
	}
	return c.backend.Reauthenticate(ctx, sess.Identity.Email, password)
}

func (c *Coordinator) reauthFailure(err error) Result {
	if errors.Is(err, errNoUser) {
		return failure(msgNoUserFound)
	}
	return failure(c.messageFor(err))
}
