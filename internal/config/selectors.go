package config

// TikTok DOM selectors.
// Each logical element has an ordered candidate list because the upload page
// changes its markup without notice. The first candidate that resolves wins.
// Update default.toml when uploads break.
//
// Candidates are CSS by default. A candidate starting with "/", "(" or
// "xpath=" is XPath, and "host >>> inner" pierces host's shadow root.

// Candidates is an ordered selector candidate list for one logical element.
type Candidates []string

type SelectorsConfig struct {
	Login    LoginSelectors    `mapstructure:"login" toml:"login"`
	Upload   UploadSelectors   `mapstructure:"upload" toml:"upload"`
	Schedule ScheduleSelectors `mapstructure:"schedule" toml:"schedule"`
}

type LoginSelectors struct {
	UsernameField Candidates `mapstructure:"username_field" toml:"username_field"`
	PasswordField Candidates `mapstructure:"password_field" toml:"password_field"`
	LoginButton   Candidates `mapstructure:"login_button" toml:"login_button"`
}

type UploadSelectors struct {
	FileInput             Candidates `mapstructure:"file_input" toml:"file_input"`
	ProcessingIndicator   Candidates `mapstructure:"processing_indicator" toml:"processing_indicator"`
	ReadyIndicator        Candidates `mapstructure:"ready_indicator" toml:"ready_indicator"`
	Caption               Candidates `mapstructure:"caption" toml:"caption"`
	MentionBox            Candidates `mapstructure:"mention_box" toml:"mention_box"`
	MentionUserID         Candidates `mapstructure:"mention_user_id" toml:"mention_user_id"`
	CookiesBanner         Candidates `mapstructure:"cookies_banner" toml:"cookies_banner"`
	SplitWindow           Candidates `mapstructure:"split_window" toml:"split_window"`
	Comment               Candidates `mapstructure:"comment" toml:"comment"`
	Stitch                Candidates `mapstructure:"stitch" toml:"stitch"`
	Duet                  Candidates `mapstructure:"duet" toml:"duet"`
	Post                  Candidates `mapstructure:"post" toml:"post"`
	PostFallback          Candidates `mapstructure:"post_fallback" toml:"post_fallback"`
	PostConfirmation      Candidates `mapstructure:"post_confirmation" toml:"post_confirmation"`
	PostSuccessAffordance Candidates `mapstructure:"post_success_affordance" toml:"post_success_affordance"`
	ProductLinkButton     Candidates `mapstructure:"product_link_button" toml:"product_link_button"`
	ProductLinkNext       Candidates `mapstructure:"product_link_next" toml:"product_link_next"`
	ProductSearchInput    Candidates `mapstructure:"product_search_input" toml:"product_search_input"`
	ProductResult         Candidates `mapstructure:"product_result" toml:"product_result"`
	ProductConfirm        Candidates `mapstructure:"product_confirm" toml:"product_confirm"`
}

type ScheduleSelectors struct {
	Switch              Candidates `mapstructure:"switch" toml:"switch"`
	DatePicker          Candidates `mapstructure:"date_picker" toml:"date_picker"`
	DateText            Candidates `mapstructure:"date_text" toml:"date_text"`
	Calendar            Candidates `mapstructure:"calendar" toml:"calendar"`
	CalendarMonth       Candidates `mapstructure:"calendar_month" toml:"calendar_month"`
	CalendarPrev        Candidates `mapstructure:"calendar_prev" toml:"calendar_prev"`
	CalendarNext        Candidates `mapstructure:"calendar_next" toml:"calendar_next"`
	CalendarValidDays   Candidates `mapstructure:"calendar_valid_days" toml:"calendar_valid_days"`
	TimePicker          Candidates `mapstructure:"time_picker" toml:"time_picker"`
	TimePickerContainer Candidates `mapstructure:"time_picker_container" toml:"time_picker_container"`
	HourOptions         Candidates `mapstructure:"hour_options" toml:"hour_options"`
	MinuteOptions       Candidates `mapstructure:"minute_options" toml:"minute_options"`
	TimeText            Candidates `mapstructure:"time_text" toml:"time_text"`
}
