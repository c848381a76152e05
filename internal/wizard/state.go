package wizard

// Flow is the dialog a session runs.
type Flow string

const (
	FlowAdd  Flow = "add"
	FlowEdit Flow = "edit"
)

// State is a wizard step. Every event is handled by exactly one state.
type State string

const (
	AddChooseType   State = "add.choose_type"
	AddInputCode    State = "add.input_code"
	AddQuickAdd     State = "add.quick_add"
	AddInputName    State = "add.input_name"
	AddInputSeason  State = "add.input_season"
	AddInputEpisode State = "add.input_episode"
	AddInputFile    State = "add.input_file"
	AddInputCaption State = "add.input_caption"
	AddSelectGenres State = "add.select_genres"
	AddConfirm      State = "add.confirm"
	AddEditMenu     State = "add.edit_menu"
	AddEditField    State = "add.edit_field"
	AddSuccess      State = "add.success"

	EditInputCode            State = "edit.input_code"
	EditSelectAction         State = "edit.select_action"
	EditName                 State = "edit.name"
	EditCaption              State = "edit.caption"
	EditFile                 State = "edit.file"
	EditCode                 State = "edit.code"
	EditGenres               State = "edit.genres"
	EditConfirmDelete        State = "edit.confirm_delete"
	EditSelectSeason         State = "edit.select_season"
	EditSelectEpisode        State = "edit.select_episode"
	EditEpisode              State = "edit.episode"
	EditSeasonNumber         State = "edit.season_num"
	EditEpisodeNumber        State = "edit.episode_num"
	EditConfirmDeleteEpisode State = "edit.confirm_delete_episode"
	EditConfirmDeleteSeason  State = "edit.confirm_delete_season"
	EditGlobalSeason         State = "edit.global_season"
)

// Field names a draft field that can be edited from the confirmation screen.
type Field string

const (
	FieldCode    Field = "code"
	FieldName    Field = "name"
	FieldGenres  Field = "genres"
	FieldCaption Field = "caption"
	FieldVideo   Field = "video"
	FieldSeason  Field = "season"
	FieldEpisode Field = "episode"
)
