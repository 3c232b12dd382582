package identity

import "golang.org/x/text/language"

// Catalog resolves taxonomy codes to user-facing messages in the languages
// the mobile application ships. Missing translations fall back to English.
type Catalog struct {
	matcher language.Matcher
}

var supported = []language.Tag{
	language.English,
	language.German,
	language.Spanish,
	language.French,
	language.Italian,
	language.Dutch,
}

// NewCatalog constructs a Catalog covering the supported languages.
func NewCatalog() *Catalog {
	return &Catalog{matcher: language.NewMatcher(supported)}
}

// Match negotiates an Accept-Language header against the supported set.
func (c *Catalog) Match(acceptLanguage string) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return language.English
	}
	_, idx, _ := c.matcher.Match(tags...)
	return supported[idx]
}

// Message returns the user-facing message for code in the given language.
func (c *Catalog) Message(tag language.Tag, code Code) string {
	if table, ok := messages[tag]; ok {
		if msg, ok := table[code]; ok {
			return msg
		}
	}
	if msg, ok := messages[language.English][code]; ok {
		return msg
	}
	return messages[language.English][CodeUnknown]
}

// MessageFor maps an error's code to its English message. Convenience for
// callers without a negotiated language.
func (c *Catalog) MessageFor(err error) string {
	return c.Message(language.English, CodeOf(err))
}

var messages = map[language.Tag]map[Code]string{
	language.English: {
		CodeAccountNotFound:     "No account found with this email address.",
		CodeWrongPassword:       "Incorrect password. Please try again.",
		CodeInvalidEmail:        "Please enter a valid email address.",
		CodeAccountDisabled:     "This account has been disabled. Please contact support.",
		CodeRateLimited:         "Too many failed attempts. Please try again later.",
		CodeEmailInUse:          "An account with this email already exists.",
		CodeWeakPassword:        "Password should be at least 6 characters long.",
		CodeInvalidCredential:   "Invalid email or password. Please check your credentials.",
		CodeNetworkFailure:      "Network error. Please check your connection and try again.",
		CodeRequiresRecentLogin: "Please sign in again to complete this action.",
		CodeEmailConflict:       "This email is already registered to another account.",
		CodeOperationNotAllowed: "This operation is not allowed. Please contact support.",
		CodeInvalidActionLink:   "The action code is invalid. Please try again.",
		CodeExpiredActionLink:   "The action code has expired. Please request a new one.",
		CodeSessionExpired:      "Your session has expired. Please sign in again.",
		CodeUnknown:             "An unexpected error occurred. Please try again.",
	},
	language.German: {
		CodeAccountNotFound:     "Kein Konto mit dieser E-Mail-Adresse gefunden.",
		CodeWrongPassword:       "Falsches Passwort. Bitte versuchen Sie es erneut.",
		CodeInvalidEmail:        "Bitte geben Sie eine gültige E-Mail-Adresse ein.",
		CodeAccountDisabled:     "Dieses Konto wurde deaktiviert. Bitte kontaktieren Sie den Support.",
		CodeRateLimited:         "Zu viele fehlgeschlagene Versuche. Bitte versuchen Sie es später erneut.",
		CodeEmailInUse:          "Ein Konto mit dieser E-Mail existiert bereits.",
		CodeWeakPassword:        "Das Passwort sollte mindestens 6 Zeichen lang sein.",
		CodeInvalidCredential:   "Ungültige E-Mail oder ungültiges Passwort. Bitte prüfen Sie Ihre Angaben.",
		CodeNetworkFailure:      "Netzwerkfehler. Bitte prüfen Sie Ihre Verbindung und versuchen Sie es erneut.",
		CodeRequiresRecentLogin: "Bitte melden Sie sich erneut an, um diese Aktion abzuschließen.",
		CodeEmailConflict:       "Diese E-Mail ist bereits mit einem anderen Konto registriert.",
		CodeOperationNotAllowed: "Diese Aktion ist nicht erlaubt. Bitte kontaktieren Sie den Support.",
		CodeInvalidActionLink:   "Der Aktionscode ist ungültig. Bitte versuchen Sie es erneut.",
		CodeExpiredActionLink:   "Der Aktionscode ist abgelaufen. Bitte fordern Sie einen neuen an.",
		CodeSessionExpired:      "Ihre Sitzung ist abgelaufen. Bitte melden Sie sich erneut an.",
		CodeUnknown:             "Ein unerwarteter Fehler ist aufgetreten. Bitte versuchen Sie es erneut.",
	},
	language.Spanish: {
		CodeAccountNotFound:     "No se encontró ninguna cuenta con este correo electrónico.",
		CodeWrongPassword:       "Contraseña incorrecta. Inténtalo de nuevo.",
		CodeInvalidEmail:        "Introduce una dirección de correo electrónico válida.",
		CodeAccountDisabled:     "Esta cuenta ha sido deshabilitada. Contacta con soporte.",
		CodeRateLimited:         "Demasiados intentos fallidos. Inténtalo de nuevo más tarde.",
		CodeEmailInUse:          "Ya existe una cuenta con este correo electrónico.",
		CodeWeakPassword:        "La contraseña debe tener al menos 6 caracteres.",
		CodeInvalidCredential:   "Correo o contraseña no válidos. Comprueba tus credenciales.",
		CodeNetworkFailure:      "Error de red. Comprueba tu conexión e inténtalo de nuevo.",
		CodeRequiresRecentLogin: "Vuelve a iniciar sesión para completar esta acción.",
		CodeEmailConflict:       "Este correo ya está registrado en otra cuenta.",
		CodeOperationNotAllowed: "Esta operación no está permitida. Contacta con soporte.",
		CodeInvalidActionLink:   "El código de acción no es válido. Inténtalo de nuevo.",
		CodeExpiredActionLink:   "El código de acción ha caducado. Solicita uno nuevo.",
		CodeSessionExpired:      "Tu sesión ha caducado. Vuelve a iniciar sesión.",
		CodeUnknown:             "Se produjo un error inesperado. Inténtalo de nuevo.",
	},
	language.French: {
		CodeAccountNotFound:     "Aucun compte trouvé avec cette adresse e-mail.",
		CodeWrongPassword:       "Mot de passe incorrect. Veuillez réessayer.",
		CodeInvalidEmail:        "Veuillez saisir une adresse e-mail valide.",
		CodeAccountDisabled:     "Ce compte a été désactivé. Veuillez contacter le support.",
		CodeRateLimited:         "Trop de tentatives échouées. Veuillez réessayer plus tard.",
		CodeEmailInUse:          "Un compte avec cet e-mail existe déjà.",
		CodeWeakPassword:        "Le mot de passe doit contenir au moins 6 caractères.",
		CodeInvalidCredential:   "E-mail ou mot de passe invalide. Vérifiez vos identifiants.",
		CodeNetworkFailure:      "Erreur réseau. Vérifiez votre connexion et réessayez.",
		CodeRequiresRecentLogin: "Veuillez vous reconnecter pour terminer cette action.",
		CodeEmailConflict:       "Cet e-mail est déjà associé à un autre compte.",
		CodeOperationNotAllowed: "Cette opération n'est pas autorisée. Veuillez contacter le support.",
		CodeInvalidActionLink:   "Le code d'action est invalide. Veuillez réessayer.",
		CodeExpiredActionLink:   "Le code d'action a expiré. Veuillez en demander un nouveau.",
		CodeSessionExpired:      "Votre session a expiré. Veuillez vous reconnecter.",
		CodeUnknown:             "Une erreur inattendue s'est produite. Veuillez réessayer.",
	},
	language.Italian: {
		CodeAccountNotFound:     "Nessun account trovato con questo indirizzo e-mail.",
		CodeWrongPassword:       "Password errata. Riprova.",
		CodeInvalidEmail:        "Inserisci un indirizzo e-mail valido.",
		CodeAccountDisabled:     "Questo account è stato disabilitato. Contatta l'assistenza.",
		CodeRateLimited:         "Troppi tentativi falliti. Riprova più tardi.",
		CodeEmailInUse:          "Esiste già un account con questa e-mail.",
		CodeWeakPassword:        "La password deve contenere almeno 6 caratteri.",
		CodeInvalidCredential:   "E-mail o password non validi. Controlla le tue credenziali.",
		CodeNetworkFailure:      "Errore di rete. Controlla la connessione e riprova.",
		CodeRequiresRecentLogin: "Accedi di nuovo per completare questa azione.",
		CodeEmailConflict:       "Questa e-mail è già registrata su un altro account.",
		CodeOperationNotAllowed: "Questa operazione non è consentita. Contatta l'assistenza.",
		CodeInvalidActionLink:   "Il codice azione non è valido. Riprova.",
		CodeExpiredActionLink:   "Il codice azione è scaduto. Richiedine uno nuovo.",
		CodeSessionExpired:      "La tua sessione è scaduta. Accedi di nuovo.",
		CodeUnknown:             "Si è verificato un errore imprevisto. Riprova.",
	},
	language.Dutch: {
		CodeAccountNotFound:     "Geen account gevonden met dit e-mailadres.",
		CodeWrongPassword:       "Onjuist wachtwoord. Probeer het opnieuw.",
		CodeInvalidEmail:        "Voer een geldig e-mailadres in.",
		CodeAccountDisabled:     "Dit account is uitgeschakeld. Neem contact op met support.",
		CodeRateLimited:         "Te veel mislukte pogingen. Probeer het later opnieuw.",
		CodeEmailInUse:          "Er bestaat al een account met dit e-mailadres.",
		CodeWeakPassword:        "Het wachtwoord moet minstens 6 tekens lang zijn.",
		CodeInvalidCredential:   "Ongeldige e-mail of ongeldig wachtwoord. Controleer je gegevens.",
		CodeNetworkFailure:      "Netwerkfout. Controleer je verbinding en probeer het opnieuw.",
		CodeRequiresRecentLogin: "Log opnieuw in om deze actie te voltooien.",
		CodeEmailConflict:       "Dit e-mailadres is al geregistreerd bij een ander account.",
		CodeOperationNotAllowed: "Deze bewerking is niet toegestaan. Neem contact op met support.",
		CodeInvalidActionLink:   "De actiecode is ongeldig. Probeer het opnieuw.",
		CodeExpiredActionLink:   "De actiecode is verlopen. Vraag een nieuwe aan.",
		CodeSessionExpired:      "Je sessie is verlopen. Log opnieuw in.",
		CodeUnknown:             "Er is een onverwachte fout opgetreden. Probeer het opnieuw.",
	},
}
